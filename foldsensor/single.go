// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import "sync"

// boundaryStrategy 决定在重叠角度区间使用哪一组边界：
// 从折叠状态打开时用较小边界，从展开状态合上时用较大边界，形成回差。
type boundaryStrategy int

const (
	strategySmaller boundaryStrategy = iota
	strategyLarger
)

func (s boundaryStrategy) String() string {
	if s == strategyLarger {
		return "larger"
	}
	return "smaller"
}

func updateStrategy(t *SingleThresholds, strategy boundaryStrategy, angle float64, hall int) boundaryStrategy {
	if hall == hallFolded {
		return strategySmaller
	}
	if angle >= t.LargerBoundary {
		return strategyLarger
	}
	return strategy
}

func keepOrHalfFold(current FoldStatus) FoldStatus {
	if current == FoldStatusUnknown {
		return FoldStatusHalfFold
	}
	return current
}

// nextStatusByAxis 单轴分类，缓冲区内保持当前状态
func nextStatusByAxis(t *SingleThresholds, strategy boundaryStrategy, current FoldStatus,
	angle float64, hall int) FoldStatus {
	if angle < t.AngleMin {
		return current
	}
	if strategy == strategySmaller {
		switch {
		case angle <= t.OpenHalfFoldedMin && hall == hallFolded:
			return FoldStatusFolded
		case angle >= t.OpenHalfFoldedMin+t.HalfFoldedBuffer && hall == hallFolded:
			return FoldStatusHalfFold
		case angle <= t.HalfFoldedMax-t.HalfFoldedBuffer && hall == hallThreshold:
			return FoldStatusHalfFold
		case angle >= t.HalfFoldedMax:
			return FoldStatusExpand
		}
		return keepOrHalfFold(current)
	}

	if hall == hallThreshold && floatEqualAbs(angle, t.OpenHalfFoldedMin) {
		return current
	}
	switch {
	case angle <= t.CloseHalfFoldedMin:
		return FoldStatusFolded
	case angle > t.CloseHalfFoldedMin+t.HalfFoldedBuffer && angle <= t.HalfFoldedMax-t.HalfFoldedBuffer:
		return FoldStatusHalfFold
	case angle >= t.HalfFoldedMax:
		return FoldStatusExpand
	}
	return keepOrHalfFold(current)
}

// axisClassifier 保存单个转轴的边界策略
type axisClassifier struct {
	mu       sync.Mutex
	strategy boundaryStrategy
}

func (a *axisClassifier) next(t *SingleThresholds, current FoldStatus, angle float64, hall int) FoldStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	strategy := updateStrategy(t, a.strategy, angle, hall)
	if strategy != a.strategy {
		logger.Debugf("boundary strategy %v -> %v", a.strategy, strategy)
		a.strategy = strategy
	}
	return nextStatusByAxis(t, strategy, current, angle, hall)
}

type singleManager struct {
	*Manager
	axis axisClassifier
}

func newSingleManager(cfg Config) *singleManager {
	s := &singleManager{
		Manager: newManager(TopologySingle, cfg),
	}
	s.classify = s.nextStatus
	return s
}

func (s *singleManager) nextStatus(angle float64, hall int) FoldStatus {
	return s.axis.next(&s.getProfile().Single, s.CurrentStatus(), angle, hall)
}

func (s *singleManager) handle(angle float64, hall int) {
	s.setSample(angle, hall)
	if s.IsTentMode() {
		s.tentModeHandleSensorChange(angle, hall)
		return
	}
	next := s.nextStatus(angle, hall)
	s.HandleSensorChange(next, []float64{angle}, []int{hall})
}

func (s *singleManager) HandleAngleChange(angle float64, hall int) {
	s.handle(angle, hall)
}

func (s *singleManager) HandleHallChange(angle float64, hall int) {
	s.handle(angle, hall)
}

func (s *singleManager) HandleAngleOrHallChange(angles []float64, halls []int, isPostureRegistered bool) {
	angle, hall, ok := s.firstSample(angles, halls)
	if !ok {
		return
	}
	s.handle(angle, hall)
}
