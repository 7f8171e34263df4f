// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"sync"

	"github.com/linuxdeepin/go-lib/strv"
)

type AppState int32

const (
	AppStateForeground AppState = iota
	AppStateBackground
)

// AppStateObserver 记录当前前台应用，用于判断合盖时是否需要切换屏幕
type AppStateObserver struct {
	mu             sync.RWMutex
	foreground     string
	hallSwitchApps strv.Strv
}

func NewAppStateObserver() *AppStateObserver {
	return &AppStateObserver{}
}

func (o *AppStateObserver) OnForegroundApplicationChanged(bundle string, state AppState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch state {
	case AppStateForeground:
		o.foreground = bundle
	case AppStateBackground:
		if o.foreground == bundle {
			o.foreground = ""
		}
	}
}

func (o *AppStateObserver) OnForegroundChanged(bundle string) {
	o.OnForegroundApplicationChanged(bundle, AppStateForeground)
}

func (o *AppStateObserver) ForegroundApp() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.foreground
}

func (o *AppStateObserver) SetHallSwitchApps(apps []string) {
	o.mu.Lock()
	o.hallSwitchApps = strv.Strv(apps).Uniq()
	o.mu.Unlock()
}

// IsHallSwitchApp 判断前台应用是否在合盖切换名单中
func (o *AppStateObserver) IsHallSwitchApp() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.foreground != "" && o.hallSwitchApps.Contains(o.foreground)
}
