// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"fmt"
	"time"
)

type FoldStatus uint32

const (
	FoldStatusUnknown FoldStatus = iota
	FoldStatusExpand
	FoldStatusFolded
	FoldStatusHalfFold
)

// 双轴设备的组合状态，十位是第二轴（1 展开，2 半折），个位是第一轴
const (
	FoldStatusExpandWithSecondExpand       FoldStatus = 11
	FoldStatusExpandWithSecondHalfFolded   FoldStatus = 21
	FoldStatusFoldedWithSecondExpand       FoldStatus = 12
	FoldStatusFoldedWithSecondHalfFolded   FoldStatus = 22
	FoldStatusHalfFoldWithSecondExpand     FoldStatus = 13
	FoldStatusHalfFoldWithSecondHalfFolded FoldStatus = 23
)

var foldStatusNames = map[FoldStatus]string{
	FoldStatusUnknown:                      "UNKNOWN",
	FoldStatusExpand:                       "EXPAND",
	FoldStatusFolded:                       "FOLDED",
	FoldStatusHalfFold:                     "HALF_FOLD",
	FoldStatusExpandWithSecondExpand:       "EXPAND_WITH_SECOND_EXPAND",
	FoldStatusFoldedWithSecondExpand:       "FOLDED_WITH_SECOND_EXPAND",
	FoldStatusExpandWithSecondHalfFolded:   "EXPAND_WITH_SECOND_HALF_FOLDED",
	FoldStatusFoldedWithSecondHalfFolded:   "FOLDED_WITH_SECOND_HALF_FOLDED",
	FoldStatusHalfFoldWithSecondExpand:     "HALF_FOLD_WITH_SECOND_EXPAND",
	FoldStatusHalfFoldWithSecondHalfFolded: "HALF_FOLD_WITH_SECOND_HALF_FOLDED",
}

func (s FoldStatus) String() string {
	if name, ok := foldStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FoldStatus(%d)", uint32(s))
}

// combineStatus 合成双轴状态，第二轴折叠时只看第一轴
func combineStatus(first, second FoldStatus) FoldStatus {
	if first == FoldStatusUnknown || second == FoldStatusUnknown {
		return FoldStatusUnknown
	}
	switch second {
	case FoldStatusExpand:
		return first + 10
	case FoldStatusHalfFold:
		return first + 20
	default:
		return first
	}
}

type FoldDisplayMode uint32

const (
	FoldDisplayModeUnknown FoldDisplayMode = iota
	FoldDisplayModeFull
	FoldDisplayModeMain
	FoldDisplayModeSub
	FoldDisplayModeCoordination
	FoldDisplayModeGlobalFull
)

func (m FoldDisplayMode) String() string {
	switch m {
	case FoldDisplayModeFull:
		return "FULL"
	case FoldDisplayModeMain:
		return "MAIN"
	case FoldDisplayModeSub:
		return "SUB"
	case FoldDisplayModeCoordination:
		return "COORDINATION"
	case FoldDisplayModeGlobalFull:
		return "GLOBAL_FULL"
	default:
		return "UNKNOWN"
	}
}

type TentModeStatus uint32

const (
	NormalEnterTentMode TentModeStatus = iota
	NormalExitTentMode
	AbnormalExitTentModeDueToAngle
	AbnormalExitTentModeDueToHall
)

func (s TentModeStatus) String() string {
	switch s {
	case NormalEnterTentMode:
		return "NORMAL_ENTER_TENT_MODE"
	case NormalExitTentMode:
		return "NORMAL_EXIT_TENT_MODE"
	case AbnormalExitTentModeDueToAngle:
		return "ABNORMAL_EXIT_TENT_MODE_DUE_TO_ANGLE"
	case AbnormalExitTentModeDueToHall:
		return "ABNORMAL_EXIT_TENT_MODE_DUE_TO_HALL"
	default:
		return fmt.Sprintf("TentModeStatus(%d)", uint32(s))
	}
}

const (
	tentModeOff int32 = iota
	tentModeOn
)

// DeviceStatus 是设备姿态的持久化记录，帐篷模式下记为 tent
type DeviceStatus uint32

const (
	DeviceStatusUnknown DeviceStatus = iota
	DeviceStatusFolded
	DeviceStatusTent
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceStatusFolded:
		return "FOLDED"
	case DeviceStatusTent:
		return "TENT"
	default:
		return "UNKNOWN"
	}
}

type Topology string

const (
	TopologySingle    Topology = "single"
	TopologyDual      Topology = "dual"
	TopologySecondary Topology = "secondary"
)

func (t Topology) IsValid() bool {
	switch t {
	case TopologySingle, TopologyDual, TopologySecondary:
		return true
	}
	return false
}

const (
	hallThreshold = 1
	hallFolded    = 0
)

// StatusReport 记录一次折叠状态变化，Duration 是上一个状态持续的时间
type StatusReport struct {
	From     FoldStatus
	To       FoldStatus
	Duration time.Duration
	Angles   []float64
	Halls    []int
}

func (r StatusReport) String() string {
	return fmt.Sprintf("%v -> %v, duration %ds, angles %v, halls %v",
		r.From, r.To, int64(r.Duration/time.Second), r.Angles, r.Halls)
}

type Listener interface {
	OnFoldStatusChanged(report StatusReport)
	OnTentModeChanged(status TentModeStatus)
	OnFoldAngleChanged(angles []float64)
}

// SensorFoldStateManager 由不同形态的设备各自实现，启动时按 profile 选择一次
type SensorFoldStateManager interface {
	HandleAngleChange(angle float64, hall int)
	HandleHallChange(angle float64, hall int)
	HandleAngleOrHallChange(angles []float64, halls []int, isPostureRegistered bool)
	HandleTentChange(tentOn bool, hall int)
	FinishTaskSequence(step Step)
	CurrentStatus() FoldStatus
	IsTentMode() bool
	DeviceStatus() DeviceStatus
	SetProfile(p *Profile)
	Topology() Topology
}
