// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/agent"
	"github.com/linuxdeepin/dde-screen-daemon/common/dconfig"
	"github.com/linuxdeepin/dde-screen-daemon/common/statetimer"
	"github.com/linuxdeepin/dde-screen-daemon/common/taskscheduler"
	"github.com/linuxdeepin/dde-screen-daemon/foldsensor"
	"github.com/linuxdeepin/dde-screen-daemon/multiscreen"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screenpower"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	login1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.login1"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/dbusutil/proxy"
	x "github.com/linuxdeepin/go-x11-client"
	"golang.org/x/xerrors"
)

const (
	dsettingsAppID          = "org.deepin.dde.daemon"
	dsettingsScreenName     = "org.deepin.dde.daemon.screen"
	dsettingsHallSwitchApps = "hallSwitchApps"
	dsettingsSupportTent    = "supportTentMode"
	dsettingsLockFoldMode   = "lockFoldDisplayMode"
)

//go:generate dbusutil-gen em -type Manager

type Manager struct {
	service       *dbusutil.Service
	systemSigLoop *dbusutil.SignalLoop

	powerScheduler   *taskscheduler.TaskScheduler
	sessionScheduler *taskscheduler.TaskScheduler
	// 传感器数据按到达顺序串行处理，不能和霍尔等待任务共用调度器
	sensorScheduler *taskscheduler.TaskScheduler

	timer   *statetimer.Timer
	table   *screensession.Table
	rs      render.Service
	xConn   *x.Conn
	agents  *agent.Registry
	fsm     *screenpower.StateMachine
	ms      *multiscreen.Manager
	policy  *foldsensor.DisplayModePolicy
	fold    foldsensor.SensorFoldStateManager
	app     *foldsensor.AppStateObserver
	profile *foldsensor.Profile

	profileWatcher *foldsensor.ProfileWatcher
	lid            *foldsensor.LidSource
	login1Manager  login1.Manager

	dsScreen           *dconfig.DConfig
	hallSwitchApps     dconfig.StringList
	supportTentMode    dconfig.Bool
	lockFoldDisplayMod dconfig.Bool

	systemSleep int32
	sampleMu    sync.Mutex
	lastAngle   float64

	PropsMu         sync.RWMutex
	ScreenState     string
	FoldStatus      uint32
	FoldDisplayMode uint32
	TentMode        bool

	// nolint
	signals *struct {
		ScreenStateChanged struct {
			state string
		}

		FoldStatusChanged struct {
			status uint32
		}

		FoldDisplayModeChanged struct {
			mode uint32
		}

		TentModeChanged struct {
			status uint32
		}

		CombinationChanged struct {
			innerId    uint64
			inner      uint32
			externalId uint64
			external   uint32
		}
	}
}

type options struct {
	rs       render.Service
	caller   agent.Caller
	profile  *foldsensor.Profile
	topology foldsensor.Topology
}

func newManager(service *dbusutil.Service) (*Manager, error) {
	sysBus := service.Conn()

	profile, path, err := foldsensor.LoadProfile(foldsensor.DefaultProfilePaths)
	if err != nil {
		logger.Warning("load profile failed, use default:", err)
		profile = foldsensor.DefaultProfile()
	} else if path != "" {
		logger.Info("load profile from", path)
	}
	topology := foldsensor.SelectTopology(profile, foldsensor.ProductName())
	logger.Info("device topology:", topology)

	opts := options{
		caller:   agent.NewBusCaller(sysBus),
		profile:  profile,
		topology: topology,
	}
	xConn, err := x.NewConn()
	if err == nil {
		opts.rs, err = render.NewXService(xConn)
		if err != nil {
			logger.Warning("init x render service failed:", err)
			xConn.Close()
			xConn = nil
		}
	} else {
		logger.Warning("connect x failed, use memory render service:", err)
		xConn = nil
	}
	if opts.rs == nil {
		opts.rs = render.NewMemoryService()
	}

	m, err := newManagerWithOptions(opts)
	if err != nil {
		if xConn != nil {
			xConn.Close()
		}
		return nil, err
	}
	m.service = service
	m.xConn = xConn
	m.systemSigLoop = dbusutil.NewSignalLoop(sysBus, 10)
	m.systemSigLoop.Start()
	m.init(sysBus)
	return m, nil
}

// newManagerWithOptions 构造不依赖总线的部分
func newManagerWithOptions(opts options) (*Manager, error) {
	m := &Manager{
		powerScheduler:   taskscheduler.New("screen-power"),
		sessionScheduler: taskscheduler.New("screen-session"),
		sensorScheduler:  taskscheduler.New("screen-sensor"),
		timer:            statetimer.New(),
		table:            screensession.NewTable(),
		rs:               opts.rs,
		agents:           agent.NewRegistry(opts.caller),
		app:              foldsensor.NewAppStateObserver(),
		profile:          opts.profile,
	}
	if m.profile == nil {
		m.profile = foldsensor.DefaultProfile()
	}

	m.timer.SetExecutor(func(name string, fn func()) {
		m.powerScheduler.PostAsyncTask(func(ctx context.Context) error {
			fn()
			return nil
		}, "timeout "+name, 0)
	})
	m.fsm = screenpower.NewStateMachine(&powerExecutor{m: m}, m.timer)
	m.fsm.ConnectStateChanged(m.handleScreenStateChanged)
	m.ScreenState = m.fsm.CurrentState().String()

	m.ms = multiscreen.NewManager(m.table, m.rs, &powerState{m: m})
	m.ms.SetListener(&multiScreenListener{m: m})
	m.table.OnRemove(m.agents.RemoveScreen)
	m.agents.OnClientLost(func() {
		logger.Info("screen session client lost")
		m.ms.SetClient(nil)
	})

	m.policy = foldsensor.NewDisplayModePolicy(opts.topology, m.handleFoldDisplayModeChange)
	fold, err := foldsensor.NewSensorFoldStateManager(opts.topology, foldsensor.Config{
		Policy:          m.policy,
		Listener:        &foldListener{m: m},
		Profile:         m.profile,
		SupportTentMode: m.isTentModeSupported,
		AppObserver:     m.app,
		IsScreenOn:      m.isScreenOn,
		Scheduler:       m.powerScheduler,
	})
	if err != nil {
		m.stopSchedulers()
		return nil, xerrors.Errorf("new fold state manager: %w", err)
	}
	m.fold = fold

	err = m.initScreenSessions()
	if err != nil {
		logger.Warning("init screen sessions failed:", err)
	}
	return m, nil
}

func (m *Manager) init(sysBus *dbus.Conn) {
	err := m.agents.Watch(m.systemSigLoop)
	if err != nil {
		logger.Warning("watch agents failed:", err)
	}

	m.initDSettings(sysBus)
	m.initPowerEvents(sysBus)

	m.lid, err = foldsensor.NewLidSource(sysBus, m.systemSigLoop, m.handleLidHall)
	if err != nil {
		if !xerrors.Is(err, foldsensor.ErrNoLid) {
			logger.Warning("init lid source failed:", err)
		}
		m.lid = nil
	}

	m.profileWatcher, err = foldsensor.NewProfileWatcher(foldsensor.DefaultProfilePaths, m.handleProfileChanged)
	if err != nil {
		logger.Warning("watch profile failed:", err)
	}
}

func (m *Manager) initDSettings(sysBus *dbus.Conn) {
	var err error
	m.dsScreen, err = dconfig.NewDConfigWithConn(sysBus, dsettingsAppID, dsettingsScreenName, "")
	if err != nil {
		logger.Warning("new dconfig failed:", err)
		m.dsScreen = nil
		return
	}

	m.hallSwitchApps.Bind(m.dsScreen, dsettingsHallSwitchApps)
	m.supportTentMode.Bind(m.dsScreen, dsettingsSupportTent)
	m.lockFoldDisplayMod.Bind(m.dsScreen, dsettingsLockFoldMode)

	m.app.SetHallSwitchApps(m.hallSwitchApps.Get())
	m.policy.SetLockDisplayStatus(m.lockFoldDisplayMod.Get())

	m.hallSwitchApps.SetNotifyChangedFunc(func(val interface{}) {
		apps, _ := val.([]string)
		logger.Info("hall switch apps changed:", apps)
		m.app.SetHallSwitchApps(apps)
	})
	m.lockFoldDisplayMod.SetNotifyChangedFunc(func(val interface{}) {
		locked, _ := val.(bool)
		logger.Info("lock fold display mode changed:", locked)
		m.policy.SetLockDisplayStatus(locked)
	})
}

// 没有配置服务时默认支持帐篷模式
func (m *Manager) isTentModeSupported() bool {
	if m.dsScreen == nil {
		return true
	}
	return m.supportTentMode.Get()
}

func (m *Manager) isScreenOn() bool {
	switch m.fsm.CurrentState() {
	case screenpower.StateScreenOn, screenpower.StateScreenAdvancedOn:
		return true
	}
	return false
}

func (m *Manager) isSystemSleep() bool {
	return atomic.LoadInt32(&m.systemSleep) == 1
}

func (m *Manager) setSystemSleep(sleep bool) {
	var v int32
	if sleep {
		v = 1
	}
	atomic.StoreInt32(&m.systemSleep, v)
}

func (m *Manager) isLidOpen() bool {
	if m.lid == nil {
		return true
	}
	closed, err := m.lid.LidIsClosed()
	if err != nil {
		logger.Warning(err)
		return true
	}
	return !closed
}

// initScreenSessions 用渲染服务的输出初始化屏幕表，第一个内置屏幕为主屏
func (m *Manager) initScreenSessions() error {
	outputs, err := m.rs.Outputs()
	if err != nil {
		m.fsm.InitStateMachine(0)
		return err
	}

	var sessions []*screensession.ScreenSession
	mainIdx := -1
	for _, info := range outputs {
		if !info.Connected {
			continue
		}
		s := screensession.NewFromOutput(screensession.ScreenID(len(sessions)), info)
		s.Combination = screensession.CombinationExtend
		s.IsExtend = true
		if mainIdx < 0 && s.IsInternal {
			mainIdx = len(sessions)
		}
		sessions = append(sessions, s)
	}
	if len(sessions) > 0 {
		if mainIdx < 0 {
			mainIdx = 0
		}
		sessions[mainIdx].Combination = screensession.CombinationMain
		sessions[mainIdx].IsExtend = false
	}

	m.fsm.InitStateMachine(len(sessions))
	var x0 int32
	for _, s := range sessions {
		s.NodeID, err = m.rs.ReuseDisplayNode(render.InvalidNodeID, render.NodeConfig{RSID: s.RSID})
		if err != nil {
			logger.Warningf("create display node for %v failed: %v", s, err)
		}
		s.Property.StartX = x0
		x0 += int32(s.Property.Bounds.Width)
		err = m.table.Add(s)
		if err != nil {
			logger.Warning(err)
		} else {
			logger.Info("add", s)
		}
		// 添加失败也要计数，否则状态机停在 SCREEN_INIT
		m.fsm.IncScreenStateInitRef()
	}
	return nil
}

func (m *Manager) stopSchedulers() {
	m.sensorScheduler.Stop()
	m.sessionScheduler.Stop()
	m.powerScheduler.Stop()
	m.timer.StopAll()
}

func (m *Manager) destroy() {
	if m.profileWatcher != nil {
		err := m.profileWatcher.Close()
		if err != nil {
			logger.Warning(err)
		}
	}
	if m.lid != nil {
		m.lid.Destroy()
	}
	if m.login1Manager != nil {
		m.login1Manager.RemoveHandler(proxy.RemoveAllHandlers)
	}
	if m.dsScreen != nil {
		m.dsScreen.Destroy()
	}
	m.agents.Unwatch()
	if m.systemSigLoop != nil {
		m.systemSigLoop.Stop()
	}
	m.stopSchedulers()
	if m.xConn != nil {
		m.xConn.Close()
	}
}
