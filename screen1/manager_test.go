// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/agent"
	"github.com/linuxdeepin/dde-screen-daemon/common/taskscheduler"
	"github.com/linuxdeepin/dde-screen-daemon/foldsensor"
	"github.com/linuxdeepin/dde-screen-daemon/multiscreen"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screenpower"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const (
	innerRS    = 10
	externalRS = 20
	testOwner  = ":1.42"
	testPath   = dbus.ObjectPath("/org/deepin/dde/Screen1/Agent")
)

// fakeCaller 记录所有调用，需要回复的调用都返回 true
type fakeCaller struct {
	mu    sync.Mutex
	calls []string
}

func (c *fakeCaller) Call(owner string, path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := strings.LastIndex(method, ".")
	c.calls = append(c.calls, fmt.Sprintf("%s %v", method[idx+1:], args))
	return &dbus.Call{Body: []interface{}{true}}
}

func (c *fakeCaller) Go(owner string, path dbus.ObjectPath, method string, args ...interface{}) error {
	c.Call(owner, path, method, args...)
	return nil
}

func (c *fakeCaller) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if strings.HasPrefix(call, method+" ") {
			n++
		}
	}
	return n
}

func (c *fakeCaller) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.calls {
		if v == call {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, topology foldsensor.Topology) (*Manager, *render.MemoryService, *fakeCaller) {
	rs := render.NewMemoryService()
	rs.AddOutput(render.OutputInfo{RSID: externalRS, Name: "HDMI-1", Connected: true,
		Width: 2560, Height: 1440, MmWidth: 600})
	rs.AddOutput(render.OutputInfo{RSID: innerRS, Name: "eDP-1", IsBuiltin: true, Connected: true,
		Width: 1920, Height: 1080, MmWidth: 310})
	rs.AddOutput(render.OutputInfo{RSID: 30, Name: "DP-1"})
	caller := &fakeCaller{}
	m, err := newManagerWithOptions(options{
		rs:       rs,
		caller:   caller,
		topology: topology,
	})
	require.NoError(t, err)
	t.Cleanup(m.stopSchedulers)
	return m, rs, caller
}

func (m *Manager) screenByRS(t *testing.T, rsID uint64) *screensession.ScreenSession {
	for _, s := range m.table.List() {
		if s.RSID == rsID {
			return s
		}
	}
	t.Fatalf("no screen with rs %d", rsID)
	return nil
}

func TestInitScreenSessions(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)

	screens := m.table.List()
	require.Len(t, screens, 2)
	inner, external, err := m.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, "eDP-1", inner.Name)
	assert.Equal(t, screensession.CombinationMain, inner.Combination)
	assert.Equal(t, screensession.CombinationExtend, external.Combination)
	assert.True(t, external.IsExtend)
	assert.NotEqual(t, render.InvalidNodeID, inner.NodeID)

	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
	assert.Equal(t, "SCREEN_ON", m.getScreenState())

	list, busErr := m.ListScreens()
	assert.Nil(t, busErr)
	assert.Contains(t, list, "eDP-1")
	assert.Contains(t, list, "HDMI-1")
	assert.NotContains(t, list, "DP-1")
}

func TestInitScreenSessionsWithoutOutputs(t *testing.T) {
	m, err := newManagerWithOptions(options{
		rs:       render.NewMemoryService(),
		caller:   &fakeCaller{},
		topology: foldsensor.TopologySingle,
	})
	require.NoError(t, err)
	defer m.stopSchedulers()
	assert.Empty(t, m.table.List())
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
	assert.Equal(t, screenpower.PowerStateOff, (&powerExecutor{m: m}).ScreenPower())
}

func TestNewManagerInvalidTopology(t *testing.T) {
	_, err := newManagerWithOptions(options{
		rs:       render.NewMemoryService(),
		caller:   &fakeCaller{},
		topology: foldsensor.Topology("pocket"),
	})
	assert.True(t, xerrors.Is(err, foldsensor.ErrInvalidTopology))
}

func TestHandlePowerEventInvalid(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	ok, busErr := m.HandlePowerEvent(1000, 0)
	assert.False(t, ok)
	assert.NotNil(t, busErr)

	// SCREEN_ON 下没有 POWER_ON 的边
	ok, busErr = m.HandlePowerEvent(uint32(screenpower.EventPowerOn), 0)
	assert.False(t, ok)
	assert.Nil(t, busErr)
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
}

func TestPowerOffAndWakeUp(t *testing.T) {
	m, rs, caller := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypePowerEvent)))
	inner := m.screenByRS(t, innerRS)

	ok, busErr := m.SetScreenPowerStatus(uint64(inner.ID), uint32(screenpower.EventPowerOffDirectly),
		uint32(render.PowerStatusOff))
	require.Nil(t, busErr)
	require.True(t, ok)
	assert.Equal(t, screenpower.StateScreenOff, m.fsm.CurrentState())
	assert.Equal(t, "SCREEN_OFF", m.getScreenState())
	status, _ := rs.GetScreenPowerStatus(innerRS)
	assert.Equal(t, render.PowerStatusOff, status)
	assert.Equal(t, 1, caller.count("OnScreenPowerChanged"))

	ok, _ = m.HandlePowerEvent(uint32(screenpower.EventWakeupBegin), uint32(screenpower.ReasonPowerButton))
	require.True(t, ok)
	assert.Equal(t, screenpower.StateWaitScreenOnReady, m.fsm.CurrentState())
	assert.True(t, caller.has(fmt.Sprintf("OnWakeUpBegin [%d]", screenpower.ReasonPowerButton)))

	ok, _ = m.SetScreenPowerStatus(uint64(inner.ID), uint32(screenpower.EventPowerOn), uint32(render.PowerStatusOn))
	require.True(t, ok)
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
	status, _ = rs.GetScreenPowerStatus(innerRS)
	assert.Equal(t, render.PowerStatusOn, status)
}

func TestPowerOffExternalKeepsScreenOn(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	external := m.screenByRS(t, externalRS)

	ok, _ := m.SetScreenPowerStatus(uint64(external.ID), uint32(screenpower.EventPowerOffDirectly),
		uint32(render.PowerStatusOff))
	assert.True(t, ok)
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
	assert.Equal(t, render.PowerStatusOff, m.screenByRS(t, externalRS).PowerStatus)
}

func TestSetScreenPowerForAll(t *testing.T) {
	m, rs, _ := newTestManager(t, foldsensor.TopologySingle)
	e := &powerExecutor{m: m}

	require.NoError(t, e.SetScreenPowerForAll(screenpower.PowerStateOff, screenpower.ReasonTimeout))
	for _, s := range m.table.List() {
		assert.Equal(t, render.PowerStatusOff, s.PowerStatus)
	}
	assert.Equal(t, screenpower.PowerStateOff, e.ScreenPower())

	rs.SetFailure("SetScreenPowerStatus", xerrors.New("rs died"))
	assert.Error(t, e.SetScreenPowerForAll(screenpower.PowerStateOn, screenpower.ReasonTimeout))
	assert.Equal(t, screenpower.PowerStateOff, e.ScreenPower())
	assert.Error(t, e.SetScreenPowerForAll(screenpower.PowerStateInvalid, screenpower.ReasonTimeout))

	assert.Error(t, e.SetScreenPowerStatus(screensession.ScreenID(99), render.PowerStatusOn))
}

func TestSetScreenPowerForAllRestoreOnFailure(t *testing.T) {
	for _, failRS := range []uint64{innerRS, externalRS} {
		m, rs, _ := newTestManager(t, foldsensor.TopologySingle)
		e := &powerExecutor{m: m}

		rs.SetPowerFailure(failRS, xerrors.New("output busy"))
		err := e.SetScreenPowerForAll(screenpower.PowerStateOff, screenpower.ReasonTimeout)
		require.Error(t, err, "rs %d", failRS)
		for _, rsID := range []uint64{innerRS, externalRS} {
			status, err := rs.GetScreenPowerStatus(rsID)
			require.NoError(t, err)
			assert.Equal(t, render.PowerStatusOn, status, "rs %d, failed rs %d", rsID, failRS)
			assert.Equal(t, render.PowerStatusOn, m.screenByRS(t, rsID).PowerStatus,
				"rs %d, failed rs %d", rsID, failRS)
		}
		assert.Equal(t, screenpower.PowerStateOn, e.ScreenPower())
	}
}

func TestSetScreenPowerForAllStateUnchangedOnFailure(t *testing.T) {
	m, rs, _ := newTestManager(t, foldsensor.TopologySingle)
	m.fsm.ToTransition(screenpower.StateWaitScreenAdvancedOnReady, true)

	rs.SetPowerFailure(externalRS, xerrors.New("output busy"))
	ok, busErr := m.SetScreenPowerForAll(uint32(screenpower.PowerStateOff), uint32(screenpower.ReasonTimeout))
	assert.Nil(t, busErr)
	assert.False(t, ok)
	assert.Equal(t, screenpower.StateWaitScreenAdvancedOnReady, m.fsm.CurrentState())
	assert.Equal(t, render.PowerStatusOn, m.screenByRS(t, innerRS).PowerStatus)

	rs.SetPowerFailure(externalRS, nil)
	ok, _ = m.SetScreenPowerForAll(uint32(screenpower.PowerStateOff), uint32(screenpower.ReasonTimeout))
	assert.True(t, ok)
	assert.Equal(t, screenpower.StateScreenOff, m.fsm.CurrentState())
	assert.Equal(t, render.PowerStatusOff, m.screenByRS(t, innerRS).PowerStatus)
}

func TestPowerStatusMapping(t *testing.T) {
	for _, state := range []screenpower.ScreenPowerState{
		screenpower.PowerStateOn, screenpower.PowerStateStandBy, screenpower.PowerStateSuspend,
		screenpower.PowerStateOff, screenpower.PowerStateDoze, screenpower.PowerStateDozeSuspend,
	} {
		assert.Equal(t, state, toScreenPowerState(toRenderPowerStatus(state)), state.String())
	}
	assert.Equal(t, render.PowerStatusInvalid, toRenderPowerStatus(screenpower.PowerStateInvalid))
	assert.Equal(t, screenpower.PowerStateOff, toScreenPowerState(render.PowerStatusOffFake))
	assert.Equal(t, screenpower.PowerStateOn, toScreenPowerState(render.PowerStatusOnAdvanced))
	assert.Equal(t, screenpower.PowerStateInvalid, toScreenPowerState(render.PowerStatusInvalid))
}

func TestPrepareForSleep(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	flush := func() {
		require.NoError(t, m.powerScheduler.PostSyncTask(context.Background(), func(ctx context.Context) error {
			return nil
		}, "flush"))
	}

	m.handlePrepareForSleep(true)
	assert.True(t, (&powerState{m: m}).IsSystemSleep())
	flush()
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())

	m.handlePrepareForSleep(false)
	assert.False(t, m.isSystemSleep())
	flush()
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())
	assert.Equal(t, render.PowerStatusOn, m.screenByRS(t, innerRS).PowerStatus)
}

func TestRetryPowerEvent(t *testing.T) {
	m, rs, _ := newTestManager(t, foldsensor.TopologySingle)
	inner := m.screenByRS(t, innerRS)
	flush := func() {
		require.NoError(t, m.powerScheduler.PostSyncTask(context.Background(), func(ctx context.Context) error {
			return nil
		}, "flush"))
	}

	// 没有对应的边时不重试
	m.retryPowerEvent(screenpower.EventPowerOn, m.mainScreenPowerInfo(render.PowerStatusOn))
	flush()
	assert.Equal(t, screenpower.StateScreenOn, m.fsm.CurrentState())

	_, err := m.handlePowerEvent(screenpower.EventWakeupBegin, screenpower.ReasonInfo{Reason: screenpower.ReasonSystem})
	require.NoError(t, err)
	require.Equal(t, screenpower.StateWaitScreenOnReady, m.fsm.CurrentState())

	rs.SetFailure("SetScreenPowerStatus", xerrors.New("busy"))
	info := m.mainScreenPowerInfo(render.PowerStatusOn)
	assert.Equal(t, inner.ID, info.ScreenID)
	m.retryPowerEvent(screenpower.EventPowerOn, info)
	flush()
	assert.Equal(t, screenpower.StateWaitScreenOnReady, m.fsm.CurrentState())

	// 等待重试期间调度器上的其他任务不被阻塞
	for i := 0; i < 3; i++ {
		begin := time.Now()
		flush()
		assert.Less(t, time.Since(begin), 50*time.Millisecond)
		time.Sleep(30 * time.Millisecond)
	}
	assert.Equal(t, screenpower.StateWaitScreenOnReady, m.fsm.CurrentState())

	rs.SetFailure("SetScreenPowerStatus", nil)
	assert.Eventually(t, func() bool {
		return m.fsm.CurrentState() == screenpower.StateScreenOn
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, render.PowerStatusOn, m.screenByRS(t, innerRS).PowerStatus)
}

func TestRetryPowerEventGiveUp(t *testing.T) {
	m, rs, _ := newTestManager(t, foldsensor.TopologySingle)

	_, err := m.handlePowerEvent(screenpower.EventWakeupBegin, screenpower.ReasonInfo{Reason: screenpower.ReasonSystem})
	require.NoError(t, err)

	rs.SetFailure("SetScreenPowerStatus", xerrors.New("busy"))
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 50 * time.Millisecond
	b.Reset()
	m.powerScheduler.PostAsyncTask(m.powerEventAttempt(screenpower.EventPowerOn,
		m.mainScreenPowerInfo(render.PowerStatusOn), b), "power on retry", 0)

	// 超过最长重试时间后不再投递
	time.Sleep(200 * time.Millisecond)
	calls := rs.Calls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, len(calls), len(rs.Calls()))
	assert.Equal(t, screenpower.StateWaitScreenOnReady, m.fsm.CurrentState())
}

func TestMultiScreenMode(t *testing.T) {
	m, _, caller := newTestManager(t, foldsensor.TopologySingle)
	inner := m.screenByRS(t, innerRS)
	external := m.screenByRS(t, externalRS)

	busErr := m.SetMultiScreenMode(uint64(inner.ID), uint64(external.ID), "stack")
	assert.NotNil(t, busErr)

	require.Nil(t, m.SetClient(testOwner, testPath))
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeScreenEvent)))

	busErr = m.SetMultiScreenMode(uint64(inner.ID), uint64(external.ID), multiscreen.OperateTypeMirror)
	require.Nil(t, busErr)
	_, ext, err := m.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, screensession.CombinationMirror, ext.Combination)
	assert.Equal(t, 1, caller.count("OnCombinationChanged"))

	busErr = m.SetMultiScreenMode(uint64(inner.ID), uint64(external.ID), multiscreen.OperateTypeExtend)
	require.Nil(t, busErr)
	_, ext, err = m.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, screensession.CombinationExtend, ext.Combination)
}

func TestMultiScreenPower(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.SetClient(testOwner, testPath))

	// 没有记录时不能恢复
	assert.NotNil(t, m.SetMultiScreenPower(uint32(multiscreen.SwitchOn)))

	require.Nil(t, m.SetMultiScreenPower(uint32(multiscreen.SwitchOff)))
	_, ok := m.ms.Power.Recorded()
	assert.True(t, ok)
	assert.Equal(t, render.PowerStatusOff, m.screenByRS(t, innerRS).PowerStatus)

	require.Nil(t, m.SetMultiScreenPower(uint32(multiscreen.SwitchOn)))
	inner, ext, err := m.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, screensession.CombinationMain, inner.Combination)
	assert.Equal(t, screensession.CombinationExtend, ext.Combination)
	assert.Equal(t, render.PowerStatusOn, inner.PowerStatus)
}

func TestUniqueSwitchWithoutClient(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	switched, busErr := m.UniqueSwitch([]uint64{0, 1})
	assert.Empty(t, switched)
	assert.NotNil(t, busErr)
}

func TestUniqueSwitch(t *testing.T) {
	m, _, caller := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.SetClient(testOwner, testPath))
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeScreenEvent)))
	external := m.screenByRS(t, externalRS)

	switched, busErr := m.UniqueSwitch([]uint64{uint64(external.ID), 99})
	assert.Nil(t, busErr)
	assert.Equal(t, []uint64{uint64(external.ID)}, switched)
	assert.Equal(t, screensession.CombinationUnique, m.screenByRS(t, externalRS).Combination)
	assert.Equal(t, 1, caller.count("OnNotify"))
}

func TestAgents(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	assert.NotNil(t, m.RegisterAgent(testOwner, testPath, 100))
	assert.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeFoldEvent)))
	assert.Nil(t, m.RegisterScreenAgent(testOwner, testPath+"/s", uint32(agent.TypeScreenEvent), 0))
	assert.Equal(t, 1, m.agents.Count(agent.TypeFoldEvent))
	assert.Nil(t, m.UnregisterAgent(testOwner, testPath))
	assert.Equal(t, 0, m.agents.Count(agent.TypeFoldEvent))
	assert.NotNil(t, m.UnregisterAgent(testOwner, testPath))
}

func TestReportPosture(t *testing.T) {
	m, _, caller := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeFoldEvent)))

	require.Nil(t, m.ReportPosture([]float64{170}, []int32{1}))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return m.FoldDisplayMode == uint32(foldsensor.FoldDisplayModeFull)
	}, time.Second, 10*time.Millisecond)

	require.Nil(t, m.ReportPosture([]float64{10}, []int32{0}))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return m.FoldStatus == uint32(foldsensor.FoldStatusFolded) &&
			m.FoldDisplayMode == uint32(foldsensor.FoldDisplayModeMain)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 10.0, m.getLastAngle())
	assert.Eventually(t, func() bool {
		return caller.count("OnFoldDisplayModeChanged") == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, caller.count("OnFoldStatusChanged"))
}

func TestFoldDisplayModeLocked(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	m.policy.SetLockDisplayStatus(true)

	require.Nil(t, m.ReportPosture([]float64{170}, []int32{1}))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return m.FoldStatus == uint32(foldsensor.FoldStatusExpand)
	}, time.Second, 10*time.Millisecond)
	m.PropsMu.RLock()
	assert.Equal(t, uint32(foldsensor.FoldDisplayModeUnknown), m.FoldDisplayMode)
	m.PropsMu.RUnlock()
}

func TestLidHall(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.ReportPosture([]float64{170}, []int32{1}))
	assert.Eventually(t, func() bool {
		return m.fold.CurrentStatus() == foldsensor.FoldStatusExpand
	}, time.Second, 10*time.Millisecond)

	m.setLastAngle(5)
	require.Nil(t, m.ReportHall(0))
	assert.Eventually(t, func() bool {
		return m.fold.CurrentStatus() == foldsensor.FoldStatusFolded
	}, time.Second, 10*time.Millisecond)
}

func TestReportTent(t *testing.T) {
	m, _, caller := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeFoldEvent)))

	require.Nil(t, m.ReportTent(true, 1))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return m.TentMode
	}, time.Second, 10*time.Millisecond)
	assert.True(t, m.fold.IsTentMode())
	assert.True(t, caller.has(fmt.Sprintf("OnTentModeChanged [%d]", foldsensor.NormalEnterTentMode)))

	require.Nil(t, m.ReportTent(false, 1))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return !m.TentMode
	}, time.Second, 10*time.Millisecond)
}

func TestReportTentLockedDisplayMode(t *testing.T) {
	m, _, caller := newTestManager(t, foldsensor.TopologySingle)
	require.Nil(t, m.RegisterAgent(testOwner, testPath, uint32(agent.TypeFoldEvent)))
	m.policy.SetLockDisplayStatus(true)

	require.Nil(t, m.ReportTent(true, 1))
	assert.Eventually(t, func() bool {
		m.PropsMu.RLock()
		defer m.PropsMu.RUnlock()
		return m.TentMode
	}, time.Second, 10*time.Millisecond)
	for _, s := range []*taskscheduler.TaskScheduler{m.sensorScheduler, m.sessionScheduler} {
		require.NoError(t, s.PostSyncTask(context.Background(), func(ctx context.Context) error {
			return nil
		}, "flush"))
	}

	assert.Equal(t, foldsensor.FoldDisplayModeUnknown, m.policy.DisplayMode())
	assert.Equal(t, 0, caller.count("OnFoldDisplayModeChanged"))
}

func TestSetForegroundApp(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologyDual)
	m.app.SetHallSwitchApps([]string{"deepin-camera"})
	require.Nil(t, m.SetForegroundApp("deepin-camera"))
	assert.True(t, m.app.IsHallSwitchApp())
	assert.Equal(t, foldsensor.TopologyDual, m.fold.Topology())
}

func TestProfileChanged(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	p := foldsensor.DefaultProfile()
	p.Topology = foldsensor.TopologyDual
	p.Single.HalfFoldedMax = 150
	m.handleProfileChanged(p)
	assert.Equal(t, p, m.getProfile())
	assert.Equal(t, foldsensor.TopologySingle, m.fold.Topology())
}

func TestDump(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySecondary)
	result, busErr := m.Dump()
	assert.Nil(t, busErr)
	assert.Contains(t, result, "current state: SCREEN_ON")
	assert.Contains(t, result, "topology secondary")
	assert.Contains(t, result, "HalfFoldedMax")
}

func TestSessionRemoveDropsAgents(t *testing.T) {
	m, _, _ := newTestManager(t, foldsensor.TopologySingle)
	external := m.screenByRS(t, externalRS)
	require.Nil(t, m.RegisterScreenAgent(testOwner, testPath, uint32(agent.TypeScreenEvent), uint64(external.ID)))
	require.Equal(t, 1, m.agents.Count(agent.TypeScreenEvent))
	require.NoError(t, m.table.Remove(external.ID))
	assert.Equal(t, 0, m.agents.Count(agent.TypeScreenEvent))
}
