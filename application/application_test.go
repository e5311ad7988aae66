package application

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShutdownOrder(t *testing.T) {
	app := NewApp(context.Background(), zap.NewNop())

	var order []string
	app.RegisterShutdown("logger", func() { order = append(order, "logger") }, 101)
	app.RegisterShutdown("metrics", func() { order = append(order, "metrics") }, 10)
	app.RegisterShutdown("stores", func() { order = append(order, "stores") }, 0)
	app.RegisterShutdown("report", func() { order = append(order, "report") }, 10)

	app.Stop()
	assert.Equal(t, []string{"stores", "metrics", "report", "logger"}, order)

	app.Stop()
	assert.Len(t, order, 4)
}

func TestStartCancelsOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := NewApp(ctx, zap.NewNop())
	app.Start(cancel)

	app.sig <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}

func TestRegisterRecovers(t *testing.T) {
	app := NewApp(context.Background(), zap.NewNop())

	code := func() (code int) {
		defer app.RegisterRecovers(func() { code = 1 })()
		panic("boom")
	}()
	assert.Equal(t, 1, code)

	select {
	case s := <-app.sig:
		assert.Equal(t, syscall.SIGTERM, s)
	default:
		t.Fatal("no signal after panic")
	}
}

func TestRecoverError(t *testing.T) {
	app := NewApp(context.Background(), zap.NewNop())

	run := func() (err error) {
		defer app.RecoverError(&err)
		var tables map[int][]uint32
		tables[0] = nil
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	ok := func() (err error) {
		defer app.RecoverError(&err)
		return nil
	}
	assert.NoError(t, ok())
}
