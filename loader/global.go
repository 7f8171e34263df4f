// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"sync"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

var loaderInitializer sync.Once
var _loader *Loader

func getLoader() *Loader {
	loaderInitializer.Do(func() {
		_loader = &Loader{
			modules: Modules{},
			log:     log.NewLogger("daemon/loader"),
		}
	})
	return _loader
}

func SetService(s *dbusutil.Service) {
	getLoader().service = s
}

func GetService() *dbusutil.Service {
	return getLoader().service
}

func Register(m Module) {
	getLoader().AddModule(m)
}

func List() []Module {
	return getLoader().List()
}

func GetModule(name string) Module {
	return getLoader().GetModule(name)
}

func SetLogLevel(pri log.Priority) {
	getLoader().SetLogLevel(pri)
}

func EnableModules(enablingModules []string, disableModules []string, flag EnableFlag) error {
	return getLoader().EnableModules(enablingModules, disableModules, flag)
}

// StartAll 启动所有已注册的模块，缺失的依赖不阻止其他模块启动
func StartAll() {
	var names []string
	for _, module := range getLoader().List() {
		names = append(names, module.Name())
	}
	err := getLoader().EnableModules(names, nil, EnableFlagIgnoreMissingModule)
	if err != nil {
		getLoader().log.Warning("failed to start modules:", err)
	}
}

// StopAll 按启动顺序的逆序停止模块
func StopAll() {
	l := getLoader()
	var names []string
	for _, module := range l.List() {
		names = append(names, module.Name())
	}
	order, err := l.startOrder(names)
	if err != nil {
		l.log.Warning(err)
	}
	for i := len(order) - 1; i >= 0; i-- {
		module := l.GetModule(order[i])
		if module == nil || !module.IsEnable() {
			continue
		}
		err := module.Enable(false)
		if err != nil {
			l.log.Warningf("stop module %s failed: %v", order[i], err)
		}
	}
}
