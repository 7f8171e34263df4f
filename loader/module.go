// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"sync"

	"github.com/linuxdeepin/go-lib/log"
)

type Module interface {
	Name() string
	IsEnable() bool
	Enable(bool) error
	GetDependencies() []string
	SetLogLevel(log.Priority)
	LogLevel() log.Priority
	WaitEnable()
	ModuleImpl
}

type Modules map[string]Module

type ModuleImpl interface {
	Start() error // please keep Start sync, please return err, err log will be done by loader
	Stop() error
}

type ModuleBase struct {
	impl ModuleImpl
	name string
	log  *log.Logger

	mu      sync.Mutex
	enabled bool
	// 启动成功或失败都会关闭，依赖该模块的模块不会因为它启动失败而一直等待
	started     chan struct{}
	startedOnce sync.Once
}

func NewModuleBase(name string, impl ModuleImpl, logger *log.Logger) *ModuleBase {
	return &ModuleBase{
		name:    name,
		impl:    impl,
		log:     logger,
		started: make(chan struct{}),
	}
}

func (d *ModuleBase) doEnable(enable bool) error {
	if d.impl != nil {
		fn := d.impl.Stop
		if enable {
			fn = d.impl.Start
		}

		err := fn()
		if enable {
			d.markStarted()
		}
		if err != nil {
			return err
		}
	}
	d.enabled = enable
	return nil
}

func (d *ModuleBase) markStarted() {
	d.startedOnce.Do(func() {
		close(d.started)
	})
}

func (d *ModuleBase) Enable(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enable {
		if enable {
			d.markStarted()
			return fmt.Errorf("%s module is already started", d.name)
		}
		return fmt.Errorf("%s module is already stopped", d.name)
	}
	return d.doEnable(enable)
}

func (d *ModuleBase) IsEnable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *ModuleBase) WaitEnable() {
	<-d.started
}

func (d *ModuleBase) Name() string {
	return d.name
}

func (d *ModuleBase) SetLogLevel(pri log.Priority) {
	d.log.SetLogLevel(pri)
}

func (d *ModuleBase) LogLevel() log.Priority {
	return d.log.GetLogLevel()
}
