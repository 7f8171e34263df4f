// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"context"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/agent"
	"github.com/linuxdeepin/dde-screen-daemon/multiscreen"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screenpower"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/linuxdeepin/go-lib/dbusutil"
	. "github.com/linuxdeepin/go-lib/gettext"
	"golang.org/x/xerrors"
)

const (
	dbusServiceName = "org.deepin.dde.Screen1"
	dbusPath        = "/org/deepin/dde/Screen1"
	dbusInterface   = dbusServiceName
)

var errInvalidEvent = xerrors.New("invalid power event")

func (*Manager) GetInterfaceName() string {
	return dbusInterface
}

func checkEvent(event uint32) (screenpower.PowerEvent, error) {
	e := screenpower.PowerEvent(event)
	if !e.IsValid() {
		return e, xerrors.Errorf("%w: %d", errInvalidEvent, event)
	}
	return e, nil
}

// HandlePowerEvent 处理只带原因的电源事件
func (m *Manager) HandlePowerEvent(event uint32, reason uint32) (ok bool, busErr *dbus.Error) {
	e, err := checkEvent(event)
	if err != nil {
		return false, dbusutil.ToError(err)
	}
	ok, err = m.handlePowerEvent(e, screenpower.ReasonInfo{Reason: screenpower.PowerStateChangeReason(reason)})
	return ok, dbusutil.ToError(err)
}

func (m *Manager) SetScreenPowerStatus(screenId uint64, event uint32, status uint32) (ok bool, busErr *dbus.Error) {
	e, err := checkEvent(event)
	if err != nil {
		return false, dbusutil.ToError(err)
	}
	ok, err = m.handlePowerEvent(e, screenpower.ScreenPowerInfo{
		ScreenID: screensession.ScreenID(screenId),
		Status:   render.PowerStatus(status),
	})
	return ok, dbusutil.ToError(err)
}

func (m *Manager) SetDisplayState(event uint32, state uint32) (ok bool, busErr *dbus.Error) {
	e, err := checkEvent(event)
	if err != nil {
		return false, dbusutil.ToError(err)
	}
	ok, err = m.handlePowerEvent(e, screenpower.DisplayStateInfo{State: screenpower.DisplayState(state)})
	return ok, dbusutil.ToError(err)
}

func (m *Manager) SetScreenPowerForAll(state uint32, reason uint32) (ok bool, busErr *dbus.Error) {
	s := screenpower.ScreenPowerState(state)
	event := screenpower.EventSetScreenPowerForAllPowerOff
	if s == screenpower.PowerStateOn {
		event = screenpower.EventSetScreenPowerForAllPowerOn
	}
	ok, err := m.handlePowerEvent(event, screenpower.PowerStateInfo{
		State:  s,
		Reason: screenpower.PowerStateChangeReason(reason),
	})
	return ok, dbusutil.ToError(err)
}

func (m *Manager) runSessionTask(name string, task func() error) error {
	return m.sessionScheduler.PostSyncTask(context.Background(), func(ctx context.Context) error {
		return task()
	}, name)
}

func (m *Manager) SetMultiScreenMode(innerId, externalId uint64, operateType string) *dbus.Error {
	if operateType != multiscreen.OperateTypeExtend && operateType != multiscreen.OperateTypeMirror {
		return dbusutil.ToError(xerrors.Errorf("invalid operate type %q: %w", operateType, multiscreen.DMErrorInvalidParam))
	}
	err := m.runSessionTask("multi screen mode", func() error {
		return m.ms.Mode.OnMultiScreenModeChangeRequest(screensession.ScreenID(innerId),
			screensession.ScreenID(externalId), operateType)
	})
	return dbusutil.ToError(err)
}

func (m *Manager) SetMultiScreenPower(switchType uint32) *dbus.Error {
	err := m.runSessionTask("multi screen power", func() error {
		inner, external, err := m.table.InnerAndExternal()
		if err != nil {
			return err
		}
		return m.ms.Power.OnMultiScreenPowerChangeRequest(inner.ID, external.ID, multiscreen.SwitchType(switchType))
	})
	return dbusutil.ToError(err)
}

func (m *Manager) ReportPosture(angles []float64, halls []int32) *dbus.Error {
	h := make([]int, len(halls))
	for i, v := range halls {
		h[i] = int(v)
	}
	m.reportPosture(angles, h)
	return nil
}

// ReportHall 上报霍尔传感器状态，角度沿用最近一次上报的值
func (m *Manager) ReportHall(hall int32) *dbus.Error {
	m.handleLidHall(int(hall))
	return nil
}

func (m *Manager) ReportTent(tentOn bool, hall int32) *dbus.Error {
	m.reportTent(tentOn, int(hall))
	return nil
}

func (m *Manager) SetForegroundApp(bundle string) *dbus.Error {
	m.app.OnForegroundChanged(bundle)
	return nil
}

func (m *Manager) NotifyScreenConnectCompletion(screenId uint64) *dbus.Error {
	m.ms.NotifyScreenConnectCompletion(screensession.ScreenID(screenId))
	return nil
}

// UniqueSwitch 返回切换成功的屏幕，部分失败时通知客户端
func (m *Manager) UniqueSwitch(screenIds []uint64) (switched []uint64, busErr *dbus.Error) {
	ids := make([]screensession.ScreenID, len(screenIds))
	for i, id := range screenIds {
		ids[i] = screensession.ScreenID(id)
	}
	// 等待连接完成期间不能占用会话调度器，否则 NotifyScreenConnectCompletion 无法处理
	result, err := m.ms.UniqueSwitch(context.Background(), ids)
	for _, id := range result {
		switched = append(switched, uint64(id))
	}
	if failed := len(ids) - len(result); failed > 0 && len(ids) > 0 {
		msg := fmt.Sprintf(NTr("Failed to switch %d screen to unique display",
			"Failed to switch %d screens to unique display", failed), failed)
		m.agents.Notify(agent.TypeScreenEvent, "OnNotify", msg)
	}
	return switched, dbusutil.ToError(err)
}

func (m *Manager) RegisterAgent(sender dbus.Sender, path dbus.ObjectPath, agentType uint32) *dbus.Error {
	err := m.agents.Register(string(sender), path, agent.Type(agentType))
	return dbusutil.ToError(err)
}

func (m *Manager) RegisterScreenAgent(sender dbus.Sender, path dbus.ObjectPath, agentType uint32,
	screenId uint64) *dbus.Error {
	err := m.agents.RegisterForScreen(string(sender), path, agent.Type(agentType), screensession.ScreenID(screenId))
	return dbusutil.ToError(err)
}

func (m *Manager) UnregisterAgent(sender dbus.Sender, path dbus.ObjectPath) *dbus.Error {
	err := m.agents.Unregister(string(sender), path)
	return dbusutil.ToError(err)
}

func (m *Manager) SetClient(sender dbus.Sender, path dbus.ObjectPath) *dbus.Error {
	client, err := m.agents.SetClient(string(sender), path)
	if err != nil {
		return dbusutil.ToError(err)
	}
	m.ms.SetClient(client)
	return nil
}

func (m *Manager) ListScreens() (screens string, busErr *dbus.Error) {
	var sb strings.Builder
	for _, s := range m.table.List() {
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (m *Manager) Dump() (result string, busErr *dbus.Error) {
	var sb strings.Builder
	sb.WriteString(m.fsm.Dump())
	sb.WriteString("\n")
	sb.WriteString(m.table.Dump())
	fmt.Fprintf(&sb, "\nfold: topology %v, status %v, device %v, tent %v, display mode %v, locked %v\n",
		m.fold.Topology(), m.fold.CurrentStatus(), m.fold.DeviceStatus(), m.fold.IsTentMode(),
		m.policy.DisplayMode(), m.policy.GetLockDisplayStatus())
	fmt.Fprintf(&sb, "foreground app: %q, hall switch app: %v\n", m.app.ForegroundApp(), m.app.IsHallSwitchApp())
	if pair, ok := m.ms.Power.Recorded(); ok {
		fmt.Fprintf(&sb, "recorded combination: %v\n", pair)
	}
	fmt.Fprintf(&sb, "agents: display %d, power %d, state %d, screen %d, fold %d\n",
		m.agents.Count(agent.TypeDisplayEvent), m.agents.Count(agent.TypePowerEvent),
		m.agents.Count(agent.TypeDisplayState), m.agents.Count(agent.TypeScreenEvent),
		m.agents.Count(agent.TypeFoldEvent))
	sb.WriteString("profile:\n")
	sb.WriteString(spew.Sdump(m.getProfile()))
	return sb.String(), nil
}
