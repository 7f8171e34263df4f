// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxdeepin/dde-screen-daemon/common/taskscheduler"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/foldsensor")

var ErrInvalidTopology = xerrors.New("invalid device topology")

const floatEpsilon = 1e-3

func floatEqualAbs(a, b float64) bool {
	return math.Abs(a-b) < floatEpsilon
}

type Config struct {
	Policy   FoldPolicy
	Listener Listener
	Profile  *Profile
	// 为 nil 时视为支持帐篷模式
	SupportTentMode func() bool
	// 以下仅双屏设备使用
	AppObserver *AppStateObserver
	IsScreenOn  func() bool
	// 霍尔等待任务投递到该调度器，为 nil 时单独起 goroutine
	Scheduler *taskscheduler.TaskScheduler
}

// Manager 是各形态设备共用的部分：当前状态、单步屏障和帐篷模式
type Manager struct {
	topology    Topology
	policy      FoldPolicy
	listener    Listener
	supportTent func() bool
	barrier     *oneStep

	mu           sync.Mutex
	status       FoldStatus
	lastUpdate   time.Time
	deviceStatus DeviceStatus
	profile      *Profile

	tentMode int32

	sampleMu sync.Mutex
	angle    float64
	hall     int

	// 由具体形态设置，帐篷模式退出时重新分类用
	classify func(angle float64, hall int) FoldStatus
}

func NewSensorFoldStateManager(topology Topology, cfg Config) (SensorFoldStateManager, error) {
	if cfg.Policy == nil {
		return nil, xerrors.New("fold policy is nil")
	}
	if cfg.Profile == nil {
		cfg.Profile = DefaultProfile()
	}
	switch topology {
	case TopologySingle:
		return newSingleManager(cfg), nil
	case TopologyDual:
		return newDualManager(cfg), nil
	case TopologySecondary:
		return newSecondaryManager(cfg), nil
	}
	return nil, xerrors.Errorf("%w: %q", ErrInvalidTopology, topology)
}

func newManager(topology Topology, cfg Config) *Manager {
	return &Manager{
		topology:    topology,
		policy:      cfg.Policy,
		listener:    cfg.Listener,
		supportTent: cfg.SupportTentMode,
		barrier:     newOneStep(),
		profile:     cfg.Profile,
		hall:        hallThreshold,
	}
}

func (m *Manager) Topology() Topology {
	return m.topology
}

func (m *Manager) CurrentStatus() FoldStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) DeviceStatus() DeviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceStatus
}

func (m *Manager) setDeviceStatus(status DeviceStatus) {
	m.mu.Lock()
	m.deviceStatus = status
	m.mu.Unlock()
	logger.Debug("device status:", status)
}

func (m *Manager) SetProfile(p *Profile) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()
}

func (m *Manager) getProfile() *Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

func (m *Manager) setSample(angle float64, hall int) {
	m.sampleMu.Lock()
	m.angle = angle
	m.hall = hall
	m.sampleMu.Unlock()
}

func (m *Manager) setSampleAngle(angle float64) {
	m.sampleMu.Lock()
	m.angle = angle
	m.sampleMu.Unlock()
}

func (m *Manager) setSampleHall(hall int) {
	m.sampleMu.Lock()
	m.hall = hall
	m.sampleMu.Unlock()
}

func (m *Manager) lastSample() (float64, int) {
	m.sampleMu.Lock()
	defer m.sampleMu.Unlock()
	return m.angle, m.hall
}

// HandleSensorChange 提交新的折叠状态。状态有变化时持有单步屏障，
// 直到显示模式切换完成调用 FinishTaskSequence。
func (m *Manager) HandleSensorChange(next FoldStatus, angles []float64, halls []int) {
	if next == FoldStatusUnknown {
		logger.Warning("fold state is unknown")
		return
	}
	step, err := m.barrier.acquire(context.Background(), m.getProfile().oneStepTimeout())
	if err != nil {
		logger.Warning("acquire one step failed:", err)
		return
	}

	m.mu.Lock()
	prev := m.status
	if prev == next {
		m.mu.Unlock()
		m.barrier.release(step)
		return
	}
	now := time.Now()
	report := StatusReport{
		From:   prev,
		To:     next,
		Angles: append([]float64(nil), angles...),
		Halls:  append([]int(nil), halls...),
	}
	if !m.lastUpdate.IsZero() {
		report.Duration = now.Sub(m.lastUpdate)
	}
	m.lastUpdate = now
	m.status = next
	m.mu.Unlock()

	logger.Info("fold status changed:", report)
	m.policy.SetFoldStatus(next)
	if m.listener != nil {
		m.listener.OnFoldStatusChanged(report)
	}

	pending := false
	if !m.policy.GetLockDisplayStatus() {
		pending = m.policy.SendSensorResult(next, step)
	} else {
		logger.Info("fold display mode is locked")
	}
	if !pending {
		m.barrier.release(step)
	}
}

// FinishTaskSequence 在显示模式切换完成后调用，释放 step 对应的单步屏障
func (m *Manager) FinishTaskSequence(step Step) {
	m.barrier.release(step)
}

func (m *Manager) IsTentMode() bool {
	return atomic.LoadInt32(&m.tentMode) == tentModeOn
}

func (m *Manager) SetTentMode(mode int32) {
	logger.Info("tent mode:", mode)
	atomic.StoreInt32(&m.tentMode, mode)
}

func (m *Manager) isTentSupported() bool {
	if m.supportTent == nil {
		return true
	}
	return m.supportTent()
}

func (m *Manager) tentExitRange() (float64, float64) {
	p := m.getProfile()
	if m.topology == TopologyDual {
		return p.Dual.TentExitMin, p.Dual.TentExitMax
	}
	return p.Single.TentExitMin, p.Single.TentExitMax
}

func (m *Manager) reportTentModeStatus(status TentModeStatus) {
	logger.Info("tent mode status:", status)
	if m.listener != nil {
		m.listener.OnTentModeChanged(status)
	}
}

// HandleTentChange 进入或退出帐篷模式，hall 为 -1 时使用最近一次的霍尔值
func (m *Manager) HandleTentChange(tentOn bool, hall int) {
	if !m.isTentSupported() {
		logger.Info("tent mode is not supported")
		return
	}
	if tentOn == m.IsTentMode() {
		logger.Info("repeat tent mode:", tentOn)
		return
	}

	if tentOn {
		m.reportTentModeStatus(NormalEnterTentMode)
		m.SetTentMode(tentModeOn)
		angle, curHall := m.lastSample()
		m.HandleSensorChange(FoldStatusFolded, []float64{angle}, []int{curHall})
		if !m.policy.GetLockDisplayStatus() {
			m.policy.ChangeOnTentMode(FoldStatusFolded)
		} else {
			logger.Info("fold display mode is locked, keep it in tent mode")
		}
		m.setDeviceStatus(DeviceStatusTent)
		return
	}

	m.SetTentMode(tentModeOff)
	angle, curHall := m.lastSample()
	if hall == -1 {
		hall = curHall
	}
	if hall == hallFolded {
		angle = 0
	}
	next := m.classify(angle, hall)
	if next == FoldStatusFolded {
		m.setDeviceStatus(DeviceStatusFolded)
	} else {
		m.setDeviceStatus(DeviceStatusUnknown)
	}
	m.HandleSensorChange(next, []float64{angle}, []int{hall})
	m.reportTentModeStatus(NormalExitTentMode)
	if !m.policy.GetLockDisplayStatus() {
		m.policy.ChangeOffTentMode()
	}
}

// triggerTentExit 判断帐篷模式下的采样是否已经离开帐篷姿态
func (m *Manager) triggerTentExit(angle float64, hall int) bool {
	if hall == hallFolded {
		m.reportTentModeStatus(AbnormalExitTentModeDueToHall)
		return true
	}
	lower, upper := m.tentExitRange()
	if angle < lower || angle > upper {
		m.reportTentModeStatus(AbnormalExitTentModeDueToAngle)
		return true
	}
	return false
}

func (m *Manager) tentModeHandleSensorChange(angle float64, hall int) {
	if !m.triggerTentExit(angle, hall) {
		return
	}
	next := m.classify(angle, hall)
	m.HandleSensorChange(next, []float64{angle}, []int{hall})
	m.SetTentMode(tentModeOff)
	if next == FoldStatusFolded {
		m.setDeviceStatus(DeviceStatusFolded)
	} else {
		m.setDeviceStatus(DeviceStatusUnknown)
	}
}

// 单轴设备只取第一组数据
func (m *Manager) firstSample(angles []float64, halls []int) (float64, int, bool) {
	if len(angles) == 0 || len(halls) == 0 {
		logger.Warningf("invalid sensor data, angles %v, halls %v", angles, halls)
		return 0, 0, false
	}
	return angles[0], halls[0], true
}
