// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"context"
	"sync"
	"time"

	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"golang.org/x/xerrors"
)

const (
	ScreenConnectTimeout = 500 * time.Millisecond
	maxPendingConnects   = 16

	customScbScreenName = "CustomScbScreen"
	celiaViewName       = "CeliaView"
)

var (
	ErrWaitPending      = xerrors.New("connect wait already pending")
	ErrTooManyWaits     = xerrors.New("too many pending connect waits")
	ErrConnectTimeout   = xerrors.New("wait for screen connect timeout")
	ErrWaitNotBegun     = xerrors.New("connect wait not begun")
	errNoScreenSwitched = DMErrorInvalidParam
)

type connectWait struct {
	ch   chan struct{}
	done bool
}

// ConnectWaiter 等待客户端确认屏幕连接完成，每个屏幕同时只能有一个等待
type ConnectWaiter struct {
	mu      sync.Mutex
	pending map[screensession.ScreenID]*connectWait
}

func NewConnectWaiter() *ConnectWaiter {
	return &ConnectWaiter{
		pending: make(map[screensession.ScreenID]*connectWait),
	}
}

// Begin 必须在通知客户端之前调用，否则完成通知可能先于等待到达
func (w *ConnectWaiter) Begin(id screensession.ScreenID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[id]; ok {
		return xerrors.Errorf("screen %d: %w", id, ErrWaitPending)
	}
	if len(w.pending) >= maxPendingConnects {
		return ErrTooManyWaits
	}
	w.pending[id] = &connectWait{ch: make(chan struct{})}
	return nil
}

// Wait 等待 Complete 或超时，返回时总会删除该屏幕的等待项
func (w *ConnectWaiter) Wait(ctx context.Context, id screensession.ScreenID, timeout time.Duration) error {
	w.mu.Lock()
	cw, ok := w.pending[id]
	w.mu.Unlock()
	if !ok {
		return xerrors.Errorf("screen %d: %w", id, ErrWaitNotBegun)
	}
	defer func() {
		w.mu.Lock()
		if w.pending[id] == cw {
			delete(w.pending, id)
		}
		w.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-cw.ch:
		return nil
	case <-timer.C:
		return xerrors.Errorf("screen %d: %w", id, ErrConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ConnectWaiter) Complete(id screensession.ScreenID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	logger.Info("screen connect completion", id)
	cw, ok := w.pending[id]
	if !ok || cw.done {
		return
	}
	cw.done = true
	close(cw.ch)
}

// Cancel 删除还没有开始 Wait 的等待项
func (w *ConnectWaiter) Cancel(id screensession.ScreenID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, id)
}

func (w *ConnectWaiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func needConnectWait(s *screensession.ScreenSession) bool {
	return s.InnerName == customScbScreenName || s.Name == celiaViewName
}

// Manager 组合多屏切换用到的所有部件
type Manager struct {
	*Utils
	Mode   *ModeChangeManager
	Power  *PowerChangeManager
	Waiter *ConnectWaiter
}

func NewManager(table *screensession.Table, rs render.Service, state PowerState) *Manager {
	u := NewUtils(table, rs)
	return &Manager{
		Utils:  u,
		Mode:   NewModeChangeManager(u),
		Power:  NewPowerChangeManager(u, state),
		Waiter: NewConnectWaiter(),
	}
}

func (m *Manager) NotifyScreenConnectCompletion(id screensession.ScreenID) {
	m.Waiter.Complete(id)
}

// UniqueSwitch 把屏幕切换为独立显示，返回切换成功的屏幕
func (m *Manager) UniqueSwitch(ctx context.Context, ids []screensession.ScreenID) ([]screensession.ScreenID, error) {
	if len(ids) == 0 {
		logger.Warning("unique switch with no screens")
		return nil, nil
	}
	client := m.getClient()
	if client == nil {
		return nil, DMErrorNullptr
	}

	var result []screensession.ScreenID
	for _, id := range ids {
		s, ok := m.table.Get(id)
		if !ok {
			continue
		}
		if err := m.uniqueSwitchOne(ctx, client, s); err != nil {
			logger.Warningf("switch screen %d to unique failed: %v", id, err)
			continue
		}
		result = append(result, id)
	}
	if len(result) == 0 {
		return nil, errNoScreenSwitched
	}
	return result, nil
}

// uniqueSwitchOne 先登记连接等待再修改节点和组合，通知客户端之前的失败都会恢复原状态。
// 客户端已经收到连接通知后等待超时只作为失败返回，不再恢复
func (m *Manager) uniqueSwitchOne(ctx context.Context, client Client, s *screensession.ScreenSession) error {
	wait := needConnectWait(s)
	if wait {
		if err := m.Waiter.Begin(s.ID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	origCfg := m.nodeConfigOf(s)
	node, err := m.rs.ReuseDisplayNode(s.NodeID, render.NodeConfig{RSID: s.RSID, MirrorNodeID: render.InvalidNodeID})
	if err == nil {
		err = m.table.Update(s.ID, func(ss *screensession.ScreenSession) error {
			ss.NodeID = node
			ss.Combination = screensession.CombinationUnique
			ss.OffScreenRendering = false
			return nil
		})
		if err != nil {
			m.undoUniqueNode(s, origCfg, node)
		}
	}
	m.mu.Unlock()
	if err != nil {
		if wait {
			m.Waiter.Cancel(s.ID)
		}
		return err
	}
	m.table.RemoveCastInfo(s.ID)

	s.Combination = screensession.CombinationUnique
	client.OnScreenConnectionChange(s.Option(), screensession.ScreenEventConnected)
	if wait {
		if err := m.Waiter.Wait(ctx, s.ID, ScreenConnectTimeout); err != nil {
			return err
		}
	}
	if l := m.getListener(); l != nil {
		if updated, ok := m.table.Get(s.ID); ok {
			l.OnScreenAvailableChanged(updated.ID, updated.Available)
		}
	}
	return nil
}

// nodeConfigOf 是 s 当前显示节点的配置，调用者持有 m.mu
func (m *Manager) nodeConfigOf(s *screensession.ScreenSession) render.NodeConfig {
	cfg := render.NodeConfig{RSID: s.RSID, MirrorNodeID: render.InvalidNodeID}
	if s.Combination != screensession.CombinationMirror {
		return cfg
	}
	cfg.IsMirrored = true
	for _, o := range m.table.List() {
		if o.ID != s.ID && o.Combination == screensession.CombinationMain {
			cfg.MirrorNodeID = o.NodeID
			break
		}
	}
	return cfg
}

// undoUniqueNode 删除新建的节点或恢复复用节点原来的配置，调用者持有 m.mu
func (m *Manager) undoUniqueNode(orig *screensession.ScreenSession, origCfg render.NodeConfig, created render.NodeID) {
	var err error
	if orig.NodeID == render.InvalidNodeID || created != orig.NodeID {
		err = m.rs.RemoveDisplayNode(created)
	} else {
		_, err = m.rs.ReuseDisplayNode(orig.NodeID, origCfg)
	}
	if err != nil {
		logger.Warningf("restore display node of screen %d failed: %v", orig.ID, err)
	}
}
