package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
)

// NodeError 封装首个失败节点的错误。
type NodeError struct {
	RunID string
	Node  NodeID
	Err   error
}

func (e *NodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("run %s: node %s failed", e.RunID, e.Node)
	}
	return fmt.Sprintf("run %s: node %s: %v", e.RunID, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Executor runs a Graph. It holds no per-run state and may be shared.
type Executor struct {
	graph *Graph
}

func NewExecutor(g *Graph) *Executor {
	return &Executor{graph: g}
}

// Run 执行整张图：节点在全部前驱完成后立即启动，互不依赖的节点并发运行。
// 首个失败取消整次运行，尚未启动的节点不再执行。
func (e *Executor) Run(ctx context.Context, st RunState) (RunState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = types.WithRunID(ctx, st.RunID)
	started := time.Now()
	logger.Infof("[workflow] run=%s ticker=%s start", st.RunID, st.Request.Ticker)

	var mu sync.Mutex
	state := st
	done := make(map[NodeID]chan struct{}, len(e.graph.nodes))
	for id := range e.graph.nodes {
		done[id] = make(chan struct{})
	}

	group, runCtx := errgroup.WithContext(ctx)
	for _, id := range e.graph.order() {
		node := e.graph.nodes[id]
		group.Go(func() error {
			for _, dep := range node.Deps {
				select {
				case <-done[dep]:
				case <-runCtx.Done():
					return nil
				}
			}
			if runCtx.Err() != nil {
				return nil
			}

			mu.Lock()
			snap := state.snapshot()
			mu.Unlock()

			nodeStart := time.Now()
			patch, err := e.call(runCtx, node, snap)
			if err != nil {
				logger.Warnf("[workflow] run=%s node=%s failed after %s: %v", st.RunID, node.ID, time.Since(nodeStart).Round(time.Millisecond), err)
				return &NodeError{RunID: st.RunID, Node: node.ID, Err: err}
			}

			mu.Lock()
			if runCtx.Err() != nil {
				mu.Unlock()
				return nil
			}
			err = state.apply(patch, node.Writes)
			mu.Unlock()
			if err != nil {
				return &NodeError{RunID: st.RunID, Node: node.ID, Err: err}
			}
			logger.Debugf("[workflow] run=%s node=%s done in %s", st.RunID, node.ID, time.Since(nodeStart).Round(time.Millisecond))
			close(done[node.ID])
			return nil
		})
	}

	err := group.Wait()
	mu.Lock()
	final := state
	mu.Unlock()
	if err != nil {
		return final, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return final, fmt.Errorf("run %s: %w", st.RunID, cerr)
	}
	logger.Infof("[workflow] run=%s ticker=%s finished in %s", st.RunID, st.Request.Ticker, time.Since(started).Round(time.Millisecond))
	return final, nil
}

func (e *Executor) call(ctx context.Context, node Node, snap RunState) (patch Patch, err error) {
	if node.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[workflow] run=%s node=%s panic: %v", snap.RunID, node.ID, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return node.Run(ctx, snap)
}
