// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"sync"
	"time"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/multierr"
)

type EnableFlag int

const (
	EnableFlagNone EnableFlag = 1 << iota
	EnableFlagIgnoreMissingModule
	EnableFlagForceStart
)

func (flags EnableFlag) HasFlag(flag EnableFlag) bool {
	return flags&flag != 0
}

const (
	ErrorNoDependencies int = iota
	ErrorCircleDependencies
	ErrorMissingModule
	ErrorInternalError
	ErrorConflict
)

type EnableError struct {
	ModuleName string
	Code       int
	detail     string
}

func (e *EnableError) Error() string {
	switch e.Code {
	case ErrorNoDependencies:
		return fmt.Sprintf("%s's dependencies is not meet, %s is need", e.ModuleName, e.detail)
	case ErrorCircleDependencies:
		return "dependency circle"
	case ErrorMissingModule:
		return fmt.Sprintf("%s is missing", e.ModuleName)
	case ErrorInternalError:
		return fmt.Sprintf("%s started failed: %s", e.ModuleName, e.detail)
	case ErrorConflict:
		return fmt.Sprintf("tring to enable disabled module(%s)", e.ModuleName)
	}
	return fmt.Sprintf("%s: unknown enable error %d", e.ModuleName, e.Code)
}

type Loader struct {
	modules Modules
	log     *log.Logger
	lock    sync.Mutex
	service *dbusutil.Service
}

func (l *Loader) SetLogLevel(pri log.Priority) {
	l.log.SetLogLevel(pri)

	l.lock.Lock()
	defer l.lock.Unlock()
	for _, module := range l.modules {
		module.SetLogLevel(pri)
	}
}

func (l *Loader) AddModule(m Module) {
	l.lock.Lock()
	defer l.lock.Unlock()
	name := m.Name()
	if _, exist := l.modules[name]; exist {
		l.log.Debug("Register", name, "is already registered")
		return
	}
	l.log.Debug("Register module:", name)
	l.modules[name] = m
}

func (l *Loader) List() []Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	modules := make([]Module, 0, len(l.modules))
	for _, m := range l.modules {
		modules = append(modules, m)
	}
	return modules
}

func (l *Loader) GetModule(name string) Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.modules[name]
}

func (l *Loader) waitDependencies(module Module) {
	for _, dependencyName := range module.GetDependencies() {
		l.modules[dependencyName].WaitEnable()
	}
}

// EnableModules 按依赖顺序并发启动模块，返回所有启动失败的汇总错误
func (l *Loader) EnableModules(enablingModules []string, disableModules []string, flag EnableFlag) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	startTime := time.Now()
	dag, err := NewDAGBuilder(l, enablingModules, disableModules, flag).Execute()
	if err != nil {
		return err
	}
	nodes, ok := dag.topologicalSort()
	if !ok {
		return &EnableError{Code: ErrorCircleDependencies}
	}
	l.log.Infof("build and sort dag done, cost %s", time.Since(startTime))

	var (
		errMu sync.Mutex
		errs  error
		wg    sync.WaitGroup
	)
	for _, name := range nodes {
		module := l.modules[name]
		if module.IsEnable() {
			continue
		}
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			begin := time.Now()
			l.waitDependencies(module)
			l.log.Debug("module", name, "wait dependencies done, cost", time.Since(begin))

			err := module.Enable(true)
			if err != nil {
				l.log.Errorf("enable module %s failed: %s, cost %s", name, err, time.Since(begin))
				errMu.Lock()
				errs = multierr.Append(errs, &EnableError{ModuleName: name, Code: ErrorInternalError, detail: err.Error()})
				errMu.Unlock()
				return
			}
			l.log.Infof("enable module %s done cost %s", name, time.Since(begin))
		}()
	}
	wg.Wait()

	l.log.Infof("enable modules done, cost add up to %s", time.Since(startTime))
	return errs
}

// startOrder 返回模块的启动顺序，无法排序时按原顺序返回
func (l *Loader) startOrder(names []string) ([]string, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	dag, err := NewDAGBuilder(l, names, nil, EnableFlagIgnoreMissingModule|EnableFlagForceStart).Execute()
	if err != nil {
		return names, err
	}
	nodes, ok := dag.topologicalSort()
	if !ok {
		return names, &EnableError{Code: ErrorCircleDependencies}
	}
	return nodes, nil
}
