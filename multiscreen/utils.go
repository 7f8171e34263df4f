// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"sync"

	"github.com/google/uuid"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/multiscreen")

// Utils 保存模式切换和电源切换共用的协作者，两类切换互斥执行
type Utils struct {
	mu    sync.Mutex
	table *screensession.Table
	rs    render.Service

	clientMu sync.RWMutex
	client   Client
	listener Listener

	trackerMu sync.Mutex
	tracker   string
}

func NewUtils(table *screensession.Table, rs render.Service) *Utils {
	return &Utils{
		table: table,
		rs:    rs,
	}
}

func (u *Utils) SetClient(c Client) {
	u.clientMu.Lock()
	u.client = c
	u.clientMu.Unlock()
}

func (u *Utils) getClient() Client {
	u.clientMu.RLock()
	defer u.clientMu.RUnlock()
	return u.client
}

func (u *Utils) SetListener(l Listener) {
	u.clientMu.Lock()
	u.listener = l
	u.clientMu.Unlock()
}

func (u *Utils) getListener() Listener {
	u.clientMu.RLock()
	defer u.clientMu.RUnlock()
	return u.listener
}

// CurrentChange 返回正在进行的切换的 id，空闲时为空
func (u *Utils) CurrentChange() string {
	u.trackerMu.Lock()
	defer u.trackerMu.Unlock()
	return u.tracker
}

func (u *Utils) setTracker(id string) {
	u.trackerMu.Lock()
	u.tracker = id
	u.trackerMu.Unlock()
}

// resolve 取两个屏幕的副本，返回时第一个是内屏
func (u *Utils) resolve(innerID, externalID screensession.ScreenID) (inner, external *screensession.ScreenSession, err error) {
	var ok bool
	inner, ok = u.table.Get(innerID)
	if !ok {
		return nil, nil, xerrors.Errorf("screen %d: %w", innerID, DMErrorNullptr)
	}
	external, ok = u.table.Get(externalID)
	if !ok {
		return nil, nil, xerrors.Errorf("screen %d: %w", externalID, DMErrorNullptr)
	}
	if !inner.IsInternal && external.IsInternal {
		inner, external = external, inner
	}
	if !inner.IsInternal || external.IsInternal || inner.ID == external.ID {
		return nil, nil, xerrors.Errorf("screen %d and %d: %w", innerID, externalID, DMErrorInvalidParam)
	}
	return inner, external, nil
}

type undoStep struct {
	name string
	fn   func() error
}

type combinationResult struct {
	main, other *screensession.ScreenSession
	comb        screensession.Combination
}

// txn 是一次切换。本地修改只作用在副本上，所有远程调用都成功后才写回屏幕表，
// 失败时按相反顺序尽力撤销已经完成的远程调用。
type txn struct {
	u      *Utils
	id     string
	name   string
	client Client

	inner, external *screensession.ScreenSession
	orig            map[screensession.ScreenID]*screensession.ScreenSession

	undo        []undoStep
	after       []func()
	combination *combinationResult
}

func (u *Utils) begin(name string, inner, external *screensession.ScreenSession) (*txn, error) {
	client := u.getClient()
	if client == nil {
		return nil, xerrors.Errorf("%s: screen session client: %w", name, DMErrorNullptr)
	}
	t := &txn{
		u:        u,
		id:       uuid.New().String(),
		name:     name,
		client:   client,
		inner:    inner,
		external: external,
		orig: map[screensession.ScreenID]*screensession.ScreenSession{
			inner.ID:    inner.Clone(),
			external.ID: external.Clone(),
		},
	}
	u.setTracker(t.id)
	logger.Infof("[%s] %s begin, inner: %v, external: %v", t.id, name, inner, external)
	return t, nil
}

func (t *txn) do(name string, fn func() error, undo func() error) error {
	logger.Debugf("[%s] %s", t.id, name)
	if err := fn(); err != nil {
		return xerrors.Errorf("%s: %w", name, err)
	}
	if undo != nil {
		t.undo = append(t.undo, undoStep{name: name, fn: undo})
	}
	return nil
}

// later 登记提交之后才发出的通知
func (t *txn) later(fn func()) {
	t.after = append(t.after, fn)
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		step := t.undo[i]
		if err := step.fn(); err != nil {
			logger.Warningf("[%s] undo %s failed: %v", t.id, step.name, err)
		}
	}
	t.undo = nil
}

func (t *txn) end(err error) error {
	defer t.u.setTracker("")
	if err != nil {
		logger.Warningf("[%s] %s failed: %v", t.id, t.name, err)
		t.rollback()
		return err
	}

	t.inner.OffScreenRendering = t.inner.Combination != screensession.CombinationMain
	t.external.OffScreenRendering = t.external.Combination != screensession.CombinationMain
	err = t.u.table.Swap(t.inner.ID, t.external.ID, func(a, b *screensession.ScreenSession) error {
		*a = *t.inner
		*b = *t.external
		return nil
	})
	if err != nil {
		logger.Warningf("[%s] %s commit failed: %v", t.id, t.name, err)
		t.rollback()
		return err
	}

	for _, fn := range t.after {
		fn()
	}
	if c := t.combination; c != nil {
		t.client.SetScreenCombination(c.main.ID, c.other.ID, c.comb)
	}
	if l := t.u.getListener(); l != nil {
		inner, external := t.inner, t.external
		if !inner.IsInternal && external.IsInternal {
			inner, external = external, inner
		}
		l.OnCombinationChanged(inner.Clone(), external.Clone())
	}
	logger.Infof("[%s] %s done, inner: %v, external: %v", t.id, t.name, t.inner, t.external)
	return nil
}

// origConfig 是切换前 s 所在显示节点的配置
func (t *txn) origConfig(id screensession.ScreenID) render.NodeConfig {
	s := t.orig[id]
	cfg := render.NodeConfig{RSID: s.RSID, MirrorNodeID: render.InvalidNodeID}
	if s.Combination == screensession.CombinationMirror {
		cfg.IsMirrored = true
		for oid, o := range t.orig {
			if oid != id {
				cfg.MirrorNodeID = o.NodeID
			}
		}
	}
	return cfg
}

// combinationChange 设置 main 为主屏，other 为 comb，组合通知在提交后最后发出
func (t *txn) combinationChange(main, other *screensession.ScreenSession, comb screensession.Combination) {
	main.Combination = screensession.CombinationMain
	main.IsExtend = false
	other.Combination = comb
	other.IsExtend = true
	t.combination = &combinationResult{main: main, other: other, comb: comb}
}

// physicalInfoSwap 交换两个逻辑屏幕背后的物理屏幕信息
func (t *txn) physicalInfoSwap(a, b *screensession.ScreenSession) {
	a.RSID, b.RSID = b.RSID, a.RSID
	a.IsInternal, b.IsInternal = b.IsInternal, a.IsInternal
	a.Name, b.Name = b.Name, a.Name
	a.Serial, b.Serial = b.Serial, a.Serial
	a.Property, b.Property = b.Property, a.Property
	a.PowerStatus, b.PowerStatus = b.PowerStatus, a.PowerStatus
}

func (t *txn) reuseNode(s *screensession.ScreenSession, cfg render.NodeConfig) error {
	old := s.NodeID
	oldCfg := t.origConfig(s.ID)
	var created render.NodeID
	err := t.do("reuse display node", func() error {
		node, err := t.u.rs.ReuseDisplayNode(old, cfg)
		if err != nil {
			return err
		}
		created = node
		return nil
	}, func() error {
		if old == render.InvalidNodeID || created != old {
			return t.u.rs.RemoveDisplayNode(created)
		}
		_, err := t.u.rs.ReuseDisplayNode(old, oldCfg)
		return err
	})
	if err != nil {
		return err
	}
	s.NodeID = created
	return nil
}

func (t *txn) createMirrorSession(main, s *screensession.ScreenSession) error {
	s.Combination = screensession.CombinationMirror
	s.IsExtend = true
	return t.reuseNode(s, render.NodeConfig{RSID: s.RSID, IsMirrored: true, MirrorNodeID: main.NodeID})
}

func (t *txn) createExtendSession(s *screensession.ScreenSession) error {
	s.Combination = screensession.CombinationExtend
	s.IsExtend = true
	return t.reuseNode(s, render.NodeConfig{RSID: s.RSID, MirrorNodeID: render.InvalidNodeID})
}

func (t *txn) setOffset(s *screensession.ScreenSession, x, y int32) error {
	if s.NodeID == render.InvalidNodeID {
		return nil
	}
	node := s.NodeID
	orig := t.orig[s.ID]
	return t.do("set screen offset", func() error {
		return t.u.rs.SetScreenOffset(node, x, y)
	}, func() error {
		return t.u.rs.SetScreenOffset(node, orig.Property.StartX, orig.Property.StartY)
	})
}

func (t *txn) mainPositionChange(main, other *screensession.ScreenSession) error {
	for _, s := range []*screensession.ScreenSession{main, other} {
		s.Property.StartX, s.Property.StartY = 0, 0
		s.Property.OffsetX, s.Property.OffsetY = 0, 0
		if err := t.setOffset(s, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

// extendPositionChange 把扩展屏放到主屏右侧，除非已经有起始位置
func (t *txn) extendPositionChange(main, ext *screensession.ScreenSession) error {
	main.Property.StartX, main.Property.StartY = 0, 0
	main.Property.OffsetX, main.Property.OffsetY = 0, 0
	if err := t.setOffset(main, 0, 0); err != nil {
		return err
	}
	p := &ext.Property
	if p.StartX == 0 && p.StartY == 0 {
		p.StartX = int32(main.Property.Bounds.Width)
	}
	p.OffsetX, p.OffsetY = p.StartX, p.StartY
	return t.setOffset(ext, p.StartX, p.StartY)
}

func reverseEvent(event screensession.ScreenEvent) screensession.ScreenEvent {
	if event == screensession.ScreenEventConnected {
		return screensession.ScreenEventDisconnected
	}
	return screensession.ScreenEventConnected
}

func (t *txn) screenConnectionChange(option screensession.SessionOption, event screensession.ScreenEvent) error {
	return t.do("screen connection change "+event.String(), func() error {
		t.client.OnScreenConnectionChange(option, event)
		return nil
	}, func() error {
		t.client.OnScreenConnectionChange(option, reverseEvent(event))
		return nil
	})
}

func (t *txn) createScreenSessionOnly(s *screensession.ScreenSession) error {
	orig := t.orig[s.ID]
	return t.do("create screen session only", func() error {
		if !t.client.OnCreateScreenSessionOnly(s.ID, s.RSID, s.Name, s.IsExtend) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	}, func() error {
		if !t.client.OnCreateScreenSessionOnly(orig.ID, orig.RSID, orig.Name, orig.IsExtend) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	})
}

func (t *txn) extendDisplayNodeChange(first, second *screensession.ScreenSession) error {
	a, b := first.ID, second.ID
	return t.do("extend display node change", func() error {
		if !t.client.OnExtendDisplayNodeChange(a, b) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	}, func() error {
		if !t.client.OnExtendDisplayNodeChange(a, b) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	})
}

func (t *txn) mainDisplayNodeChange(main, ext *screensession.ScreenSession) error {
	mainID, extID, extRSID := main.ID, ext.ID, ext.RSID
	origMainRSID := t.orig[mainID].RSID
	return t.do("main display node change", func() error {
		if !t.client.OnMainDisplayNodeChange(mainID, extID, extRSID) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	}, func() error {
		if !t.client.OnMainDisplayNodeChange(extID, mainID, origMainRSID) {
			return DMErrorRemoteCreateFailed
		}
		return nil
	})
}

func (t *txn) setScreenAvailableStatus(s *screensession.ScreenSession, available bool) {
	if s.Available == available {
		return
	}
	s.Available = available
	id := s.ID
	t.later(func() {
		if l := t.u.getListener(); l != nil {
			l.OnScreenAvailableChanged(id, available)
		}
	})
}

func (t *txn) notifyPropertyAndDensity(s *screensession.ScreenSession) {
	t.later(func() {
		t.client.OnPropertyChange(s.ID, s.Property, screensession.ReasonChangeMode)
		t.client.OnDensityChange(s.ID, s.Property.Density)
	})
}

func (t *txn) setPowerStatus(s *screensession.ScreenSession, status render.PowerStatus) error {
	rsID := s.RSID
	prev, err := t.u.rs.GetScreenPowerStatus(rsID)
	if err != nil {
		prev = s.PowerStatus
	}
	err = t.do("set screen power "+status.String(), func() error {
		return t.u.rs.SetScreenPowerStatus(rsID, status)
	}, func() error {
		return t.u.rs.SetScreenPowerStatus(rsID, prev)
	})
	if err != nil {
		return err
	}
	s.PowerStatus = status
	return nil
}

// removeDisplayNode 删除节点后无法还原原来的节点 id，撤销时重建并直接更新屏幕表
func (t *txn) removeDisplayNode(s *screensession.ScreenSession) error {
	node := s.NodeID
	if node == render.InvalidNodeID {
		return nil
	}
	id := s.ID
	cfg := t.origConfig(id)
	err := t.do("remove display node", func() error {
		if err := t.u.rs.SetScreenOffset(node, 0, 0); err != nil {
			return err
		}
		return t.u.rs.RemoveDisplayNode(node)
	}, func() error {
		created, err := t.u.rs.ReuseDisplayNode(render.InvalidNodeID, cfg)
		if err != nil {
			return err
		}
		return t.u.table.Update(id, func(s *screensession.ScreenSession) error {
			s.NodeID = created
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.NodeID = render.InvalidNodeID
	return nil
}

func (t *txn) mainConfig(main *screensession.ScreenSession) render.NodeConfig {
	return render.NodeConfig{RSID: main.RSID, MirrorNodeID: render.InvalidNodeID}
}
