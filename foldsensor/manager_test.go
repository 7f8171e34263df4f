// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolicy struct {
	mu       sync.Mutex
	pending  bool
	locked   bool
	statuses []FoldStatus
	results  []FoldStatus
	lastStep Step
	tentOn   []FoldStatus
	tentOff  int
}

func (p *fakePolicy) SetFoldStatus(status FoldStatus) {
	p.mu.Lock()
	p.statuses = append(p.statuses, status)
	p.mu.Unlock()
}

func (p *fakePolicy) SendSensorResult(status FoldStatus, step Step) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, status)
	p.lastStep = step
	return p.pending
}

func (p *fakePolicy) getLastStep() Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStep
}

func (p *fakePolicy) GetLockDisplayStatus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

func (p *fakePolicy) ChangeOnTentMode(status FoldStatus) {
	p.mu.Lock()
	p.tentOn = append(p.tentOn, status)
	p.mu.Unlock()
}

func (p *fakePolicy) ChangeOffTentMode() {
	p.mu.Lock()
	p.tentOff++
	p.mu.Unlock()
}

func (p *fakePolicy) getResults() []FoldStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FoldStatus(nil), p.results...)
}

type recordListener struct {
	mu      sync.Mutex
	reports []StatusReport
	tents   []TentModeStatus
	angles  [][]float64
}

func (l *recordListener) OnFoldStatusChanged(report StatusReport) {
	l.mu.Lock()
	l.reports = append(l.reports, report)
	l.mu.Unlock()
}

func (l *recordListener) OnTentModeChanged(status TentModeStatus) {
	l.mu.Lock()
	l.tents = append(l.tents, status)
	l.mu.Unlock()
}

func (l *recordListener) OnFoldAngleChanged(angles []float64) {
	l.mu.Lock()
	l.angles = append(l.angles, angles)
	l.mu.Unlock()
}

func (l *recordListener) getReports() []StatusReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StatusReport(nil), l.reports...)
}

func (l *recordListener) getTents() []TentModeStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TentModeStatus(nil), l.tents...)
}

func (l *recordListener) angleCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.angles)
}

func (l *recordListener) reset() {
	l.mu.Lock()
	l.reports = nil
	l.tents = nil
	l.angles = nil
	l.mu.Unlock()
}

func newTestManager(t *testing.T, topology Topology, policy FoldPolicy, listener Listener,
	modify func(*Config)) SensorFoldStateManager {
	cfg := Config{
		Policy:   policy,
		Listener: listener,
		Profile:  DefaultProfile(),
	}
	if modify != nil {
		modify(&cfg)
	}
	m, err := NewSensorFoldStateManager(topology, cfg)
	require.NoError(t, err)
	return m
}

func TestNewSensorFoldStateManager(t *testing.T) {
	_, err := NewSensorFoldStateManager("pocket", Config{Policy: &fakePolicy{}})
	assert.ErrorIs(t, err, ErrInvalidTopology)

	_, err = NewSensorFoldStateManager(TopologySingle, Config{})
	assert.Error(t, err)

	for _, topology := range []Topology{TopologySingle, TopologyDual, TopologySecondary} {
		m, err := NewSensorFoldStateManager(topology, Config{Policy: &fakePolicy{}})
		require.NoError(t, err)
		assert.Equal(t, topology, m.Topology())
		assert.Equal(t, FoldStatusUnknown, m.CurrentStatus())
	}
}

func TestSingleExpandToHalfFold(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	m.HandleAngleChange(170, hallThreshold)
	require.Equal(t, FoldStatusExpand, m.CurrentStatus())
	listener.reset()

	for _, angle := range []float64{160, 150, 140, 135, 130, 125, 120} {
		m.HandleAngleChange(angle, hallThreshold)
	}
	assert.Equal(t, FoldStatusHalfFold, m.CurrentStatus())
	reports := listener.getReports()
	require.Len(t, reports, 1)
	assert.Equal(t, FoldStatusExpand, reports[0].From)
	assert.Equal(t, FoldStatusHalfFold, reports[0].To)
	assert.Equal(t, []float64{130}, reports[0].Angles)
	assert.Equal(t, []FoldStatus{FoldStatusExpand, FoldStatusHalfFold}, policy.getResults())
}

func TestSingleDuplicateSample(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	m.HandleHallChange(10, hallFolded)
	m.HandleHallChange(10, hallFolded)
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())
	assert.Len(t, listener.getReports(), 1)
	assert.Len(t, policy.getResults(), 1)
}

func TestSingleOpenBuffer(t *testing.T) {
	m := newTestManager(t, TopologySingle, &fakePolicy{}, nil, nil)

	m.HandleAngleChange(10, hallFolded)
	require.Equal(t, FoldStatusFolded, m.CurrentStatus())

	// 缓冲区内保持折叠
	m.HandleAngleChange(30, hallFolded)
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())

	m.HandleAngleChange(40, hallFolded)
	assert.Equal(t, FoldStatusHalfFold, m.CurrentStatus())

	m.HandleAngleOrHallChange([]float64{150}, []int{hallThreshold}, true)
	assert.Equal(t, FoldStatusExpand, m.CurrentStatus())

	// 无效数据被忽略
	m.HandleAngleOrHallChange(nil, nil, true)
	assert.Equal(t, FoldStatusExpand, m.CurrentStatus())
}

func TestNextStatusByAxis(t *testing.T) {
	th := &DefaultProfile().Single
	tests := []struct {
		strategy boundaryStrategy
		current  FoldStatus
		angle    float64
		hall     int
		want     FoldStatus
	}{
		{strategySmaller, FoldStatusUnknown, 20, hallFolded, FoldStatusFolded},
		{strategySmaller, FoldStatusFolded, 30, hallFolded, FoldStatusFolded},
		{strategySmaller, FoldStatusFolded, 35, hallFolded, FoldStatusHalfFold},
		{strategySmaller, FoldStatusUnknown, 100, hallThreshold, FoldStatusHalfFold},
		{strategySmaller, FoldStatusHalfFold, 140, hallThreshold, FoldStatusExpand},
		{strategySmaller, FoldStatusUnknown, 135, hallThreshold, FoldStatusHalfFold},
		{strategyLarger, FoldStatusHalfFold, 25, hallThreshold, FoldStatusHalfFold},
		{strategyLarger, FoldStatusHalfFold, 60, hallThreshold, FoldStatusFolded},
		{strategyLarger, FoldStatusFolded, 75, hallThreshold, FoldStatusFolded},
		{strategyLarger, FoldStatusFolded, 81, hallThreshold, FoldStatusHalfFold},
		{strategyLarger, FoldStatusExpand, 135, hallThreshold, FoldStatusExpand},
		{strategyLarger, FoldStatusHalfFold, 150, hallThreshold, FoldStatusExpand},
		{strategyLarger, FoldStatusExpand, -1, hallThreshold, FoldStatusExpand},
	}
	for _, tt := range tests {
		got := nextStatusByAxis(th, tt.strategy, tt.current, tt.angle, tt.hall)
		assert.Equal(t, tt.want, got, "%v %v angle %v hall %d", tt.strategy, tt.current, tt.angle, tt.hall)
	}

	assert.Equal(t, strategySmaller, updateStrategy(th, strategyLarger, 120, hallFolded))
	assert.Equal(t, strategyLarger, updateStrategy(th, strategySmaller, 90, hallThreshold))
	assert.Equal(t, strategySmaller, updateStrategy(th, strategySmaller, 60, hallThreshold))
}

func TestOneStepBlocksUntilFinish(t *testing.T) {
	policy := &fakePolicy{pending: true}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, func(cfg *Config) {
		cfg.Profile.OneStepTimeoutMs = 5000
	})

	m.HandleAngleChange(170, hallThreshold)
	require.Len(t, listener.getReports(), 1)

	done := make(chan struct{})
	go func() {
		m.HandleAngleChange(120, hallThreshold)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second sample applied before finish")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Len(t, listener.getReports(), 1)

	// 不是本次持有的 step 不能释放
	first := policy.getLastStep()
	m.FinishTaskSequence(NoStep)
	m.FinishTaskSequence(first + 1)
	select {
	case <-done:
		t.Fatal("second sample applied by foreign finish")
	case <-time.After(50 * time.Millisecond):
	}

	m.FinishTaskSequence(first)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second sample still blocked after finish")
	}
	reports := listener.getReports()
	require.Len(t, reports, 2)
	assert.Equal(t, FoldStatusExpand, reports[1].From)
	assert.Equal(t, FoldStatusHalfFold, reports[1].To)
}

func TestOneStepConcurrentSamples(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleAngleChange(170, hallThreshold)
		}()
	}
	wg.Wait()
	assert.Len(t, listener.getReports(), 1)
	assert.Len(t, policy.getResults(), 1)
}

func TestOneStepTimeout(t *testing.T) {
	b := newOneStep()
	stale, err := b.acquire(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, b.isHeld())

	start := time.Now()
	step, err := b.acquire(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, time.Since(start) >= 50*time.Millisecond)
	assert.True(t, b.isHeld())
	assert.NotEqual(t, stale, step)

	// 被强制接管的持有者迟到的释放无效
	b.release(stale)
	assert.True(t, b.isHeld())

	b.release(step)
	assert.False(t, b.isHeld())
	// 重复释放无影响
	b.release(step)
	assert.False(t, b.isHeld())
}

func TestOneStepCanceled(t *testing.T) {
	b := newOneStep()
	_, err := b.acquire(context.Background(), time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	step, err := b.acquire(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, NoStep, step)
	assert.True(t, b.isHeld())
}

func TestLockedDisplayMode(t *testing.T) {
	policy := &fakePolicy{pending: true, locked: true}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, func(cfg *Config) {
		cfg.Profile.OneStepTimeoutMs = 5000
	})

	m.HandleAngleChange(170, hallThreshold)
	// 锁定时不发送结果，屏障立即释放
	m.HandleAngleChange(120, hallThreshold)
	assert.Len(t, listener.getReports(), 2)
	assert.Empty(t, policy.getResults())
}

func TestUnknownStatusDropped(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)
	m.(*singleManager).HandleSensorChange(FoldStatusUnknown, nil, nil)
	assert.Empty(t, listener.getReports())
	assert.False(t, m.(*singleManager).barrier.isHeld())
}

func TestTentMode(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	m.HandleAngleChange(120, hallThreshold)
	require.Equal(t, FoldStatusHalfFold, m.CurrentStatus())

	m.HandleTentChange(true, -1)
	assert.True(t, m.IsTentMode())
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())
	assert.Equal(t, DeviceStatusTent, m.DeviceStatus())
	assert.Equal(t, []TentModeStatus{NormalEnterTentMode}, listener.getTents())
	assert.Equal(t, []FoldStatus{FoldStatusFolded}, policy.tentOn)

	m.HandleTentChange(true, -1)
	assert.Len(t, listener.getTents(), 1)

	// 帐篷姿态内的角度不改变状态
	m.HandleAngleChange(100, hallThreshold)
	assert.True(t, m.IsTentMode())
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())

	m.HandleAngleChange(178, hallThreshold)
	assert.False(t, m.IsTentMode())
	assert.Equal(t, FoldStatusExpand, m.CurrentStatus())
	assert.Equal(t, DeviceStatusUnknown, m.DeviceStatus())
	assert.Equal(t, []TentModeStatus{NormalEnterTentMode, AbnormalExitTentModeDueToAngle}, listener.getTents())
}

func TestTentModeExit(t *testing.T) {
	policy := &fakePolicy{}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	m.HandleAngleChange(120, hallThreshold)
	m.HandleTentChange(true, -1)
	require.True(t, m.IsTentMode())

	m.HandleTentChange(false, hallFolded)
	assert.False(t, m.IsTentMode())
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())
	assert.Equal(t, DeviceStatusFolded, m.DeviceStatus())
	assert.Equal(t, []TentModeStatus{NormalEnterTentMode, NormalExitTentMode}, listener.getTents())
	assert.Equal(t, 1, policy.tentOff)

	m.HandleTentChange(true, -1)
	m.HandleHallChange(100, hallFolded)
	assert.False(t, m.IsTentMode())
	assert.Equal(t, AbnormalExitTentModeDueToHall, listener.getTents()[3])
}

func TestTentModeLockedDisplayMode(t *testing.T) {
	policy := &fakePolicy{locked: true}
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, policy, listener, nil)

	m.HandleAngleChange(120, hallThreshold)
	m.HandleTentChange(true, -1)
	assert.True(t, m.IsTentMode())
	assert.Equal(t, FoldStatusFolded, m.CurrentStatus())
	assert.Empty(t, policy.tentOn)

	m.HandleTentChange(false, hallFolded)
	assert.False(t, m.IsTentMode())
	assert.Equal(t, 0, policy.tentOff)
	assert.Equal(t, []TentModeStatus{NormalEnterTentMode, NormalExitTentMode}, listener.getTents())
	assert.Empty(t, policy.getResults())
}

func TestTentModeNotSupported(t *testing.T) {
	listener := &recordListener{}
	m := newTestManager(t, TopologySingle, &fakePolicy{}, listener, func(cfg *Config) {
		cfg.SupportTentMode = func() bool { return false }
	})
	m.HandleTentChange(true, -1)
	assert.False(t, m.IsTentMode())
	assert.Empty(t, listener.getTents())
}

func TestSetProfile(t *testing.T) {
	m := newTestManager(t, TopologySingle, &fakePolicy{}, nil, nil)
	p := DefaultProfile()
	p.Single.HalfFoldedMax = 120
	m.SetProfile(p)
	m.SetProfile(nil)

	m.HandleAngleChange(125, hallThreshold)
	assert.Equal(t, FoldStatusExpand, m.CurrentStatus())
}
