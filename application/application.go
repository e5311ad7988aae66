package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

type linkedList struct {
	node *shutdown
}

type shutdown struct {
	priority     int
	name         string
	next         *shutdown
	shutdownFunc func()
}

type App struct {
	ctx         context.Context
	shutdownRWM sync.RWMutex
	shutdown    *linkedList
	logger      *zap.Logger
	sig         chan os.Signal
}

func NewApp(ctx context.Context, logger *zap.Logger) *App {
	return &App{
		shutdown: &linkedList{},
		logger:   logger,
		ctx:      ctx,
		sig:      make(chan os.Signal, 1),
	}
}

// RegisterShutdown registers a shutdown function with a priority.
// priority 0 runs first.
func (app *App) RegisterShutdown(name string, fn func(), priority int) {
	app.shutdownRWM.Lock()
	defer app.shutdownRWM.Unlock()
	newShutdown := &shutdown{
		name:         name,
		priority:     priority,
		shutdownFunc: fn,
	}
	if app.shutdown.node == nil || app.shutdown.node.priority > priority {
		newShutdown.next = app.shutdown.node
		app.shutdown.node = newShutdown
		return
	}
	current := app.shutdown.node
	for current.next != nil && current.next.priority <= priority {
		current = current.next
	}
	newShutdown.next = current.next
	current.next = newShutdown
}

func (app *App) shutdownAll() {
	app.shutdownRWM.Lock()
	defer app.shutdownRWM.Unlock()
	for app.shutdown.node != nil {
		app.logger.Debug("shutdown", zap.String("name", app.shutdown.node.name), zap.Int("priority", app.shutdown.node.priority))
		app.shutdown.node.shutdownFunc()
		app.shutdown.node = app.shutdown.node.next
	}
}

// Stop runs every registered shutdown function once, in priority order.
func (app *App) Stop() {
	app.shutdownAll()
}

// Start cancels the run on SIGINT or SIGTERM.
func (app *App) Start(cancel context.CancelFunc) {
	signal.Notify(app.sig, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(app.sig)
		select {
		case s := <-app.sig:
			app.logger.Warn("signal received, stopping search", zap.String("signal", s.String()))
			cancel()
		case <-app.ctx.Done():
		}
	}()
}

// RegisterRecovers returns a func to defer on the main goroutine. On panic it
// logs the stack, runs onPanic and asks the app to stop.
func (app *App) RegisterRecovers(onPanic ...func()) func() {
	return func() {
		if r := recover(); r != nil {
			app.logPanic(r)
			for _, fn := range onPanic {
				fn()
			}
			select {
			case app.sig <- syscall.SIGTERM:
			default:
			}
		}
	}
}

// RecoverError turns a panic in a worker goroutine into an error stored in
// errp. Defer it first in the goroutine.
func (app *App) RecoverError(errp *error) {
	if r := recover(); r != nil {
		app.logPanic(r)
		*errp = fmt.Errorf("panic: %v", r)
	}
}

func (app *App) logPanic(r any) {
	app.logger.Error("panic recovered",
		zap.Any("panic", r),
		zap.String("stack", string(debug.Stack())),
	)
}
