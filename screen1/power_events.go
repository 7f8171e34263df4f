// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/common/taskscheduler"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screenpower"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	login1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.login1"
	"golang.org/x/xerrors"
)

const (
	wakeRetryInitialInterval = 100 * time.Millisecond
	wakeRetryMaxElapsed      = 2 * time.Second
)

func (m *Manager) initPowerEvents(sysBus *dbus.Conn) {
	m.login1Manager = login1.NewManager(sysBus)
	m.login1Manager.InitSignalExt(m.systemSigLoop, true)
	_, err := m.login1Manager.ConnectPrepareForSleep(m.handlePrepareForSleep)
	if err != nil {
		logger.Warning("failed to connect signal PrepareForSleep:", err)
	}
	sleep, err := m.login1Manager.PreparingForSleep().Get(0)
	if err != nil {
		logger.Warning(err)
		return
	}
	m.setSystemSleep(sleep)
}

func (m *Manager) handlePrepareForSleep(isSleep bool) {
	logger.Info("prepare for sleep:", isSleep)
	m.setSystemSleep(isSleep)
	if isSleep {
		m.postPowerEvent(screenpower.EventSuspendBegin, screenpower.ReasonInfo{Reason: screenpower.ReasonSystem})
		return
	}
	m.postPowerEvent(screenpower.EventWakeupBegin, screenpower.ReasonInfo{Reason: screenpower.ReasonSystem})
	m.powerScheduler.PostAsyncTask(func(ctx context.Context) error {
		m.retryPowerEvent(screenpower.EventPowerOn, m.mainScreenPowerInfo(render.PowerStatusOn))
		return nil
	}, "wakeup power on", 0)
}

func (m *Manager) postPowerEvent(event screenpower.PowerEvent, info screenpower.PowerInfo) {
	m.powerScheduler.PostAsyncTask(func(ctx context.Context) error {
		m.fsm.HandlePowerStateChange(event, info)
		return nil
	}, event.String(), 0)
}

// handlePowerEvent 在电源调度器上同步执行一个事件
func (m *Manager) handlePowerEvent(event screenpower.PowerEvent, info screenpower.PowerInfo) (bool, error) {
	var ok bool
	err := m.powerScheduler.PostSyncTask(context.Background(), func(ctx context.Context) error {
		ok = m.fsm.HandlePowerStateChange(event, info)
		return nil
	}, event.String())
	return ok, err
}

// retryPowerEvent 在电源调度器上执行事件，失败后按退避间隔重新投递，
// 每次投递只尝试一次，等待期间不占用调度器。状态表中没有对应的边时不重试
func (m *Manager) retryPowerEvent(event screenpower.PowerEvent, info screenpower.PowerInfo) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = wakeRetryInitialInterval
	b.MaxElapsedTime = wakeRetryMaxElapsed
	b.Reset()
	m.powerScheduler.PostAsyncTask(m.powerEventAttempt(event, info, b), event.String()+" retry", 0)
}

func (m *Manager) powerEventAttempt(event screenpower.PowerEvent, info screenpower.PowerInfo,
	b backoff.BackOff) taskscheduler.Task {
	return func(ctx context.Context) error {
		err := m.fsm.Handle(event, info)
		if err == nil {
			return nil
		}
		if xerrors.Is(err, screenpower.ErrInvalidTransition) {
			logger.Debug(err)
			return nil
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			logger.Warningf("handle %v failed, give up: %v", event, err)
			return err
		}
		logger.Warningf("handle %v failed, retry after %v: %v", event, next, err)
		m.powerScheduler.PostAsyncTask(m.powerEventAttempt(event, info, b), event.String()+" retry", next)
		return nil
	}
}

func (m *Manager) mainScreenPowerInfo(status render.PowerStatus) screenpower.ScreenPowerInfo {
	info := screenpower.ScreenPowerInfo{ScreenID: screensession.InvalidScreenID, Status: status}
	for _, s := range m.table.List() {
		if s.Combination == screensession.CombinationMain {
			info.ScreenID = s.ID
			break
		}
	}
	return info
}
