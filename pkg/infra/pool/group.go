package pool

import (
	"context"
	"sync"
)

// Group runs error-returning tasks on a Pool and waits for all of them.
// The first error cancels the group's context; later tasks that have not
// started yet are skipped.
type Group struct {
	pool   *Pool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errOnce sync.Once
	err     error
}

// NewGroup 创建绑定到 ctx 的任务组
func NewGroup(ctx context.Context, p *Pool) (*Group, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{pool: p, ctx: ctx, cancel: cancel}, ctx
}

// Go 提交一个任务。提交失败视为任务失败。
func (g *Group) Go(task func(ctx context.Context) error) {
	g.wg.Add(1)
	err := g.pool.Submit(func() {
		defer g.wg.Done()
		if g.ctx.Err() != nil {
			g.fail(g.ctx.Err())
			return
		}
		if err := task(g.ctx); err != nil {
			g.fail(err)
		}
	})
	if err != nil {
		g.wg.Done()
		g.fail(err)
	}
}

// Wait 等待所有任务结束，返回第一个错误
func (g *Group) Wait() error {
	g.wg.Wait()
	g.cancel()
	return g.err
}

func (g *Group) fail(err error) {
	g.errOnce.Do(func() {
		g.err = err
		g.cancel()
	})
}
