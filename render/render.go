// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"fmt"

	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/render")

var (
	ErrNoSuchScreen = xerrors.New("no such render screen")
	ErrNoSuchNode   = xerrors.New("no such display node")
)

// PowerStatus 是下发给渲染服务的屏幕电源状态
type PowerStatus uint32

const (
	PowerStatusOn PowerStatus = iota
	PowerStatusStandby
	PowerStatusSuspend
	PowerStatusOff
	PowerStatusOffFake
	PowerStatusOnAdvanced
	PowerStatusOffAdvanced
	PowerStatusDoze
	PowerStatusDozeSuspend
	PowerStatusInvalid
)

func (s PowerStatus) String() string {
	switch s {
	case PowerStatusOn:
		return "On"
	case PowerStatusStandby:
		return "Standby"
	case PowerStatusSuspend:
		return "Suspend"
	case PowerStatusOff:
		return "Off"
	case PowerStatusOffFake:
		return "OffFake"
	case PowerStatusOnAdvanced:
		return "OnAdvanced"
	case PowerStatusOffAdvanced:
		return "OffAdvanced"
	case PowerStatusDoze:
		return "Doze"
	case PowerStatusDozeSuspend:
		return "DozeSuspend"
	}
	return fmt.Sprintf("Invalid(%d)", uint32(s))
}

// IsOn 报告该状态下屏幕是否在显示内容
func (s PowerStatus) IsOn() bool {
	switch s {
	case PowerStatusOn, PowerStatusOnAdvanced, PowerStatusDoze:
		return true
	}
	return false
}

type NodeID uint64

const InvalidNodeID NodeID = 0

type NodeConfig struct {
	RSID         uint64
	IsMirrored   bool
	MirrorNodeID NodeID
}

// Service 是渲染服务的远程调用接口，所有调用都可能失败，
// 调用方要把失败传递出去而不是吞掉。
type Service interface {
	SetScreenPowerStatus(rsID uint64, status PowerStatus) error
	GetScreenPowerStatus(rsID uint64) (PowerStatus, error)
	SetScreenBacklight(rsID uint64, level uint32) error
	// ReuseDisplayNode 为屏幕重建显示节点，node 无效时新建，返回最终的节点
	ReuseDisplayNode(node NodeID, cfg NodeConfig) (NodeID, error)
	RemoveDisplayNode(node NodeID) error
	SetScreenOffset(node NodeID, x, y int32) error
	Outputs() ([]OutputInfo, error)
}

// OutputInfo 描述一个物理输出，用于初始化屏幕会话
type OutputInfo struct {
	RSID         uint64
	Name         string
	Serial       string
	Connected    bool
	IsBuiltin    bool
	MmWidth      uint32
	MmHeight     uint32
	Width        uint16
	Height       uint16
	Modes        []ModeInfo
	ActiveModeID uint32
}
