// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screenpower

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxdeepin/dde-screen-daemon/common/statetimer"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/screenpower")

var (
	normalTimeout = 1000 * time.Millisecond
	aodTimeout    = 3000 * time.Millisecond
)

var ErrInvalidTransition = xerrors.New("invalid transition")

// PowerExecutor 执行状态机动作，实现者负责调用渲染服务和多屏电源管理
type PowerExecutor interface {
	WakeUpBegin(reason PowerStateChangeReason) error
	SuspendBegin(reason PowerStateChangeReason) error
	SetDisplayState(state DisplayState) error
	SetScreenPowerStatus(id screensession.ScreenID, status render.PowerStatus) error
	SetScreenPowerForAll(state ScreenPowerState, reason PowerStateChangeReason) error
	AodExitAndSetPower(id screensession.ScreenID, status render.PowerStatus) error
	AodExitAndSetPowerAllOff() error
	// ScreenPower 返回主屏当前的电源状态
	ScreenPower() ScreenPowerState
}

type Action func(event PowerEvent, info PowerInfo) error

// Transition 是状态表中的一条边，Timeout 不为 0 时进入 Target 后启动定时器，
// 超时后执行 OnTimeout 并强制切换到 TimeoutTarget。
type Transition struct {
	Target        TransitionState
	Action        Action
	Timeout       time.Duration
	OnTimeout     Action
	TimeoutTarget TransitionState
}

func (t Transition) IsValid() bool {
	return t.Action != nil
}

type transitionKey struct {
	state TransitionState
	event PowerEvent
}

type StateChangedCallback func(from, to TransitionState)

type StateMachine struct {
	mu       sync.Mutex
	executor PowerExecutor
	timer    *statetimer.Timer
	table    map[transitionKey]Transition

	state       uint32 // TransitionState
	powerStatus uint32 // render.PowerStatus
	forced      int32

	initMu     sync.Mutex
	initRefCnt int
	initRef    int

	cbMu      sync.Mutex
	callbacks []StateChangedCallback
}

func NewStateMachine(executor PowerExecutor, timer *statetimer.Timer) *StateMachine {
	if timer == nil {
		timer = statetimer.New()
	}
	m := &StateMachine{
		executor:    executor,
		timer:       timer,
		state:       uint32(StateScreenInit),
		powerStatus: uint32(render.PowerStatusInvalid),
	}
	m.initTable()
	return m
}

// ConnectStateChanged 注册状态变化回调，回调在状态写入后同步执行
func (m *StateMachine) ConnectStateChanged(cb StateChangedCallback) {
	m.cbMu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.cbMu.Unlock()
}

// InitStateMachine 设置需要上报就绪的屏幕数，为 0 时直接进入 SCREEN_ON
func (m *StateMachine) InitStateMachine(refCnt int) {
	m.initMu.Lock()
	m.initRefCnt = refCnt
	m.initRef = 0
	m.initMu.Unlock()
	if refCnt == 0 {
		logger.Info("init end, set transition state to SCREEN_ON")
		m.setState(StateScreenOn)
	}
}

// IncScreenStateInitRef 在一个屏幕初始化完成时调用
func (m *StateMachine) IncScreenStateInitRef() {
	m.initMu.Lock()
	m.initRef++
	done := m.initRef == m.initRefCnt
	m.initMu.Unlock()
	if done {
		logger.Info("init end, set transition state to SCREEN_ON")
		m.setState(StateScreenOn)
	}
}

func (m *StateMachine) CurrentState() TransitionState {
	return TransitionState(atomic.LoadUint32(&m.state))
}

func (m *StateMachine) CurrentPowerStatus() render.PowerStatus {
	return render.PowerStatus(atomic.LoadUint32(&m.powerStatus))
}

func (m *StateMachine) setCurrentPowerStatus(status render.PowerStatus) {
	atomic.StoreUint32(&m.powerStatus, uint32(status))
}

func (m *StateMachine) setState(state TransitionState) {
	from := TransitionState(atomic.SwapUint32(&m.state, uint32(state)))
	logger.Infof("from %v to %v", from, state)

	m.cbMu.Lock()
	callbacks := append([]StateChangedCallback(nil), m.callbacks...)
	m.cbMu.Unlock()
	for _, cb := range callbacks {
		cb(from, state)
	}
}

// ToTransition 跳过状态表直接设置状态，只用于恢复和超时回退。
// 在动作中调用时 isForce 为 true 可以让本次事件不再写入表中的目标状态。
func (m *StateMachine) ToTransition(state TransitionState, isForce bool) {
	if isForce {
		atomic.StoreInt32(&m.forced, 1)
	}
	m.timer.Stop(m.CurrentState().String())
	m.setState(state)
}

func (m *StateMachine) transition(state TransitionState, event PowerEvent) Transition {
	return m.table[transitionKey{state: state, event: event}]
}

// HandlePowerStateChange 按当前状态和事件查表执行，动作成功才切换状态
func (m *StateMachine) HandlePowerStateChange(event PowerEvent, info PowerInfo) bool {
	err := m.Handle(event, info)
	if err != nil {
		logger.Warningf("handle %v failed: %v", event, err)
		return false
	}
	return true
}

func (m *StateMachine) Handle(event PowerEvent, info PowerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.CurrentState()
	logger.Infof("enter, current state: %v, event: %v, info: %v", state, event, info)
	trans := m.transition(state, event)
	if !trans.IsValid() {
		return xerrors.Errorf("%v x %v: %w", state, event, ErrInvalidTransition)
	}

	atomic.StoreInt32(&m.forced, 0)
	err := trans.Action(event, info)
	if err != nil {
		return err
	}
	m.timer.Stop(state.String())

	if atomic.SwapInt32(&m.forced, 0) == 0 && m.CurrentState() == state {
		m.setState(trans.Target)
	}
	if trans.Timeout > 0 && trans.OnTimeout != nil {
		target := trans.Target
		m.timer.Start(target.String(), trans.Timeout, func() {
			m.handleTimeout(target, trans, event, info)
		})
	} else {
		m.timer.Stop(trans.Target.String())
	}
	return nil
}

func (m *StateMachine) handleTimeout(armed TransitionState, trans Transition, event PowerEvent, info PowerInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CurrentState() != armed {
		logger.Debugf("timeout of %v ignored, current state %v", armed, m.CurrentState())
		return
	}
	logger.Warningf("state %v timeout, fallback to %v", armed, trans.TimeoutTarget)
	err := trans.OnTimeout(event, info)
	if err != nil {
		logger.Warning("timeout action failed:", err)
	}
	m.setState(trans.TimeoutTarget)
}

// Transitions 返回状态表的快照
func (m *StateMachine) Transitions() map[TransitionState]map[PowerEvent]TransitionState {
	result := make(map[TransitionState]map[PowerEvent]TransitionState)
	for key, trans := range m.table {
		edges, ok := result[key.state]
		if !ok {
			edges = make(map[PowerEvent]TransitionState)
			result[key.state] = edges
		}
		edges[key.event] = trans.Target
	}
	return result
}

func (m *StateMachine) Dump() string {
	var lines []string
	for key, trans := range m.table {
		line := fmt.Sprintf("%v x %v -> %v", key.state, key.event, trans.Target)
		if trans.Timeout > 0 {
			line += fmt.Sprintf(" (timeout %v -> %v)", trans.Timeout, trans.TimeoutTarget)
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return fmt.Sprintf("current state: %v\npower status: %v\ntransitions: %d\n%s\n",
		m.CurrentState(), m.CurrentPowerStatus(), len(m.table), strings.Join(lines, "\n"))
}
