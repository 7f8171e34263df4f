// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screensession

import (
	"sort"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/xerrors"
)

var (
	ErrNoSuchScreen = xerrors.New("no such screen")
	ErrScreenExists = xerrors.New("screen already exists")
)

type RemoveHook func(id ScreenID)

// Table 保存所有屏幕会话，外部只能拿到副本，修改必须通过 Update/Swap
type Table struct {
	mu       sync.RWMutex
	sessions map[ScreenID]*ScreenSession
	castInfo map[ScreenID]ScreenID
	hooks    []RemoveHook
}

func NewTable() *Table {
	return &Table{
		sessions: make(map[ScreenID]*ScreenSession),
		castInfo: make(map[ScreenID]ScreenID),
	}
}

func (t *Table) Add(s *ScreenSession) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[s.ID]; ok {
		return xerrors.Errorf("screen %d: %w", s.ID, ErrScreenExists)
	}
	t.sessions[s.ID] = s.Clone()
	logger.Info("add", s)
	return nil
}

// OnRemove 注册屏幕移除时的回调，回调在表锁内执行，不能再访问 Table
func (t *Table) OnRemove(hook RemoveHook) {
	t.mu.Lock()
	t.hooks = append(t.hooks, hook)
	t.mu.Unlock()
}

// Remove 在同一把锁内把屏幕从所有表中删除
func (t *Table) Remove(id ScreenID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; !ok {
		return ErrNoSuchScreen
	}
	delete(t.sessions, id)
	delete(t.castInfo, id)
	for src, dst := range t.castInfo {
		if dst == id {
			delete(t.castInfo, src)
		}
	}
	for _, hook := range t.hooks {
		hook(id)
	}
	logger.Info("remove screen", id)
	return nil
}

func (t *Table) Get(id ScreenID) (*ScreenSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (t *Table) Has(id ScreenID) bool {
	t.mu.RLock()
	_, ok := t.sessions[id]
	t.mu.RUnlock()
	return ok
}

// Update 在锁内修改一份副本，fn 成功才写回
func (t *Table) Update(id ScreenID, fn func(s *ScreenSession) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return xerrors.Errorf("screen %d: %w", id, ErrNoSuchScreen)
	}
	c := s.Clone()
	if err := fn(c); err != nil {
		return err
	}
	c.ID = id
	t.sessions[id] = c
	return nil
}

// Swap 同时修改两个屏幕，要么都写回要么都不写回
func (t *Table) Swap(a, b ScreenID, fn func(a, b *ScreenSession) error) error {
	if a == b {
		return xerrors.New("swap with itself")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sa, ok := t.sessions[a]
	if !ok {
		return xerrors.Errorf("screen %d: %w", a, ErrNoSuchScreen)
	}
	sb, ok := t.sessions[b]
	if !ok {
		return xerrors.Errorf("screen %d: %w", b, ErrNoSuchScreen)
	}
	ca, cb := sa.Clone(), sb.Clone()
	if err := fn(ca, cb); err != nil {
		return err
	}
	ca.ID, cb.ID = a, b
	t.sessions[a] = ca
	t.sessions[b] = cb
	return nil
}

// List 按 id 排序返回所有会话的副本
func (t *Table) List() []*ScreenSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]*ScreenSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// InnerAndExternal 返回内屏和第一个外屏
func (t *Table) InnerAndExternal() (inner, external *ScreenSession, err error) {
	for _, s := range t.List() {
		if s.FakeOf != InvalidScreenID {
			continue
		}
		if s.IsInternal {
			if inner == nil {
				inner = s
			}
		} else if external == nil {
			external = s
		}
	}
	if inner == nil || external == nil {
		return nil, nil, xerrors.Errorf("inner or external screen: %w", ErrNoSuchScreen)
	}
	return inner, external, nil
}

func (t *Table) SetCastInfo(src, dst ScreenID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[src]; !ok {
		return ErrNoSuchScreen
	}
	if _, ok := t.sessions[dst]; !ok {
		return ErrNoSuchScreen
	}
	t.castInfo[src] = dst
	return nil
}

func (t *Table) RemoveCastInfo(src ScreenID) {
	t.mu.Lock()
	delete(t.castInfo, src)
	t.mu.Unlock()
}

func (t *Table) CastInfo(src ScreenID) (ScreenID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dst, ok := t.castInfo[src]
	return dst, ok
}

func (t *Table) Dump() string {
	return spew.Sdump(t.List())
}
