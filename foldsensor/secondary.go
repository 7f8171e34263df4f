// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"math"
	"sync"
)

const (
	postureAxisCount = 3
	hallAxisCount    = 2
	angleAccuracy    = 0.0001
)

// secondaryManager 双转轴设备，第一轴为 B/C 屏之间，第二轴为 A/B 屏之间
type secondaryManager struct {
	*Manager
	axes [hallAxisCount]axisClassifier

	mu           sync.Mutex
	axisStatus   [hallAxisCount]FoldStatus
	globalAngles [postureAxisCount]float64
	globalHalls  [hallAxisCount]int
	notified     [hallAxisCount]float64
	history      []FoldStatus
}

func newSecondaryManager(cfg Config) *secondaryManager {
	s := &secondaryManager{
		Manager: newManager(TopologySecondary, cfg),
	}
	for i := range s.globalHalls {
		s.globalHalls[i] = hallThreshold
	}
	s.classify = s.classifyFirstAxis
	return s
}

func (s *secondaryManager) classifyFirstAxis(angle float64, hall int) FoldStatus {
	s.mu.Lock()
	current := s.axisStatus[0]
	s.mu.Unlock()
	return s.axes[0].next(&s.getProfile().Single, current, angle, hall)
}

func (s *secondaryManager) checkBoundary(angles []float64, halls []int) bool {
	if len(angles) < hallAxisCount || len(halls) < hallAxisCount {
		logger.Warningf("sensor data size invalid, angles %v, halls %v", angles, halls)
		return false
	}
	angleMax := s.getProfile().Secondary.AngleMax
	for i := 0; i < hallAxisCount; i++ {
		if angles[i] < 0 || angles[i] > angleMax+angleAccuracy {
			logger.Warningf("angle %v out of range, angles %v", angles[i], angles)
			return false
		}
		if halls[i] != hallFolded && halls[i] != hallThreshold {
			logger.Warningf("hall %d invalid, halls %v", halls[i], halls)
			return false
		}
	}
	return true
}

// notifyFoldAngleChanged 任一转轴角度变化不小于阈值时才通知
func (s *secondaryManager) notifyFoldAngleChanged(angles []float64) {
	delta := s.getProfile().Secondary.NotifyAngleDelta
	s.mu.Lock()
	changed := false
	for i := 0; i < hallAxisCount; i++ {
		if math.Abs(angles[i]-s.notified[i]) >= delta {
			changed = true
		}
	}
	if changed {
		copy(s.notified[:], angles[:hallAxisCount])
	}
	s.mu.Unlock()

	if changed && s.listener != nil {
		s.listener.OnFoldAngleChanged(append([]float64(nil), angles...))
	}
}

// handleSecondaryOneStep 只有最近若干次采样的分类结果一致才提交，单次异常采样被丢弃
func (s *secondaryManager) handleSecondaryOneStep(next FoldStatus) bool {
	n := s.getProfile().Secondary.StableSamples
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, next)
	if len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
	if len(s.history) < n {
		return false
	}
	for _, status := range s.history {
		if status != next {
			return false
		}
	}
	return true
}

func (s *secondaryManager) HandleAngleOrHallChange(angles []float64, halls []int, isPostureRegistered bool) {
	if !s.checkBoundary(angles, halls) {
		return
	}
	angles = append([]float64(nil), angles...)
	halls = append([]int(nil), halls[:hallAxisCount]...)
	if !isPostureRegistered {
		for i := range angles {
			angles[i] = 0
		}
	}

	s.mu.Lock()
	copy(s.globalAngles[:], angles)
	copy(s.globalHalls[:], halls)
	s.mu.Unlock()
	s.setSample(angles[0], halls[0])
	s.notifyFoldAngleChanged(angles)

	if s.IsTentMode() {
		s.tentModeHandleSensorChange(angles[0], halls[0])
		return
	}

	t := &s.getProfile().Single
	s.mu.Lock()
	current := s.axisStatus
	s.mu.Unlock()
	first := s.axes[0].next(t, current[0], angles[0], halls[0])
	second := s.axes[1].next(t, current[1], angles[1], halls[1])
	s.mu.Lock()
	s.axisStatus[0] = first
	s.axisStatus[1] = second
	s.mu.Unlock()

	next := combineStatus(first, second)
	logger.Debugf("angles %v, halls %v, first %v, second %v, next %v", angles, halls, first, second, next)
	if !s.handleSecondaryOneStep(next) {
		return
	}
	s.HandleSensorChange(next, angles, halls)
}

func (s *secondaryManager) snapshot() ([]float64, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.globalAngles[:]...), append([]int(nil), s.globalHalls[:]...)
}

// HandleAngleChange 只更新第一轴的角度
func (s *secondaryManager) HandleAngleChange(angle float64, hall int) {
	angles, halls := s.snapshot()
	angles[0] = angle
	halls[0] = hall
	s.HandleAngleOrHallChange(angles, halls, true)
}

func (s *secondaryManager) HandleHallChange(angle float64, hall int) {
	s.HandleAngleChange(angle, hall)
}
