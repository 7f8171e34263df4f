// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screensession

import (
	"fmt"

	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/screensession")

type ScreenID uint64

const InvalidScreenID ScreenID = ^ScreenID(0)

// Combination 是屏幕在多屏拓扑中的角色
type Combination uint32

const (
	CombinationMain Combination = iota
	CombinationMirror
	CombinationExtend
	CombinationUnique
)

func (c Combination) String() string {
	switch c {
	case CombinationMain:
		return "MAIN"
	case CombinationMirror:
		return "MIRROR"
	case CombinationExtend:
		return "EXTEND"
	case CombinationUnique:
		return "UNIQUE"
	}
	return fmt.Sprintf("Combination(%d)", uint32(c))
}

type Rect struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

type Property struct {
	Bounds       Rect
	Rotation     uint16
	Density      float64
	RefreshRates []uint32
	Modes        []render.ModeInfo
	ActiveModeID uint32

	StartX  int32
	StartY  int32
	OffsetX int32
	OffsetY int32
}

func (p Property) clone() Property {
	p.RefreshRates = append([]uint32(nil), p.RefreshRates...)
	p.Modes = append([]render.ModeInfo(nil), p.Modes...)
	return p
}

// ScreenSession 是一个物理或虚拟屏幕的记录
type ScreenSession struct {
	ID          ScreenID
	RSID        uint64
	Name        string
	Serial      string
	IsInternal  bool
	IsExtend    bool
	Combination Combination
	PowerStatus render.PowerStatus
	Available   bool
	Property    Property
	NodeID      render.NodeID
	InnerName   string
	// OffScreenRendering 标记该屏幕的内容是否离屏渲染到主屏之外
	OffScreenRendering bool
	// FakeOf 不为无效值时，该会话只用于布局，共享 FakeOf 的渲染屏幕
	FakeOf ScreenID
}

// Clone 返回不共享切片的副本
func (s *ScreenSession) Clone() *ScreenSession {
	c := *s
	c.Property = s.Property.clone()
	return &c
}

func (s *ScreenSession) String() string {
	return fmt.Sprintf("screen %d(rs %d, %s) %v internal=%v extend=%v power=%v",
		s.ID, s.RSID, s.Name, s.Combination, s.IsInternal, s.IsExtend, s.PowerStatus)
}

// NewFromOutput 根据渲染服务的输出信息构造会话
func NewFromOutput(id ScreenID, info render.OutputInfo) *ScreenSession {
	s := &ScreenSession{
		ID:          id,
		RSID:        info.RSID,
		Name:        info.Name,
		Serial:      info.Serial,
		IsInternal:  info.IsBuiltin,
		Combination: CombinationMain,
		PowerStatus: render.PowerStatusOn,
		Available:   info.Connected,
		FakeOf:      InvalidScreenID,
		Property: Property{
			Bounds: Rect{
				Width:  uint32(info.Width),
				Height: uint32(info.Height),
			},
			Modes:        append([]render.ModeInfo(nil), info.Modes...),
			ActiveModeID: info.ActiveModeID,
			RefreshRates: render.RefreshRates(info.Modes),
			Density:      calcDensity(info),
		},
	}
	return s
}

// 以 160dpi 为 1.0
func calcDensity(info render.OutputInfo) float64 {
	if info.MmWidth == 0 || info.Width == 0 {
		return 1.0
	}
	dpi := float64(info.Width) / (float64(info.MmWidth) / 25.4)
	return dpi / 160.0
}
