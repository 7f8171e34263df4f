// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dconfig

import (
	"sync"
)

// prop 把一个配置项绑定到 DConfig，配置变化时以当前值回调
type prop struct {
	mu        sync.Mutex
	dc        *DConfig
	key       string
	notifyFns []func(val interface{})
}

func (p *prop) bind(dc *DConfig, key string, current func() interface{}) {
	p.dc = dc
	p.key = key

	dc.ConnectConfigChanged(key, func(interface{}) {
		p.mu.Lock()
		fns := p.notifyFns
		p.mu.Unlock()
		if len(fns) == 0 {
			return
		}
		val := current()
		for _, fn := range fns {
			fn(val)
		}
	})
}

func (p *prop) SetNotifyChangedFunc(fn func(val interface{})) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.notifyFns = append(p.notifyFns, fn)
	p.mu.Unlock()
}

func (p *prop) write(val interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dc.SetValue(p.key, val)
}

type Bool struct {
	prop
}

func (b *Bool) Bind(dc *DConfig, key string) {
	b.bind(dc, key, func() interface{} { return b.Get() })
}

// Get 读取失败时返回 false
func (b *Bool) Get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, err := b.dc.GetValueBool(b.key)
	if err != nil {
		return false
	}
	return v
}

func (b *Bool) Set(val bool) error {
	if b.Get() == val {
		return nil
	}
	return b.write(val)
}

type StringList struct {
	prop
}

func (s *StringList) Bind(dc *DConfig, key string) {
	s.bind(dc, key, func() interface{} { return s.Get() })
}

// Get 读取失败时返回 nil
func (s *StringList) Get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.dc.GetValueStringList(s.key)
	if err != nil {
		return nil
	}
	return v
}

func (s *StringList) Set(val []string) error {
	if stringListEqual(s.Get(), val) {
		return nil
	}
	return s.write(val)
}

func stringListEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
