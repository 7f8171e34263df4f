// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	backlight "github.com/linuxdeepin/go-dbus-factory/system/org.deepin.dde.backlighthelper1"
	displayBl "github.com/linuxdeepin/go-lib/backlight/display"
	"github.com/linuxdeepin/go-lib/multierr"
	x "github.com/linuxdeepin/go-x11-client"
	"github.com/linuxdeepin/go-x11-client/ext/dpms"
	"github.com/linuxdeepin/go-x11-client/ext/randr"
	"gitlab.com/lehn/edid"
	"golang.org/x/xerrors"
)

// MaxBacklightLevel 是 SetScreenBacklight 接受的最大亮度级别
const MaxBacklightLevel = 255

const backlightTypeDisplay = 1

type crtcConfig struct {
	crtc    randr.Crtc
	outputs []randr.Output

	x        int16
	y        int16
	rotation uint16
	mode     randr.Mode
}

type xNode struct {
	cfg    NodeConfig
	output randr.Output
	x, y   int32
}

// XService 基于 randr 和 DPMS 实现渲染服务。
// X 下没有逐屏的 DPMS，关闭单个屏幕通过关闭其 crtc 实现，
// 所有已连接输出都关闭后再整体进入 DPMS off。
type XService struct {
	conn *x.Conn

	mu       sync.Mutex
	cfgTs    x.Timestamp
	saved    map[randr.Output]crtcConfig // 关闭前的 crtc 配置，打开时恢复
	power    map[randr.Output]PowerStatus
	nodes    map[NodeID]*xNode
	nextNode NodeID

	blHelper    backlight.Backlight
	controllers displayBl.Controllers
}

func NewXService(conn *x.Conn) (*XService, error) {
	s := &XService{
		conn:     conn,
		saved:    make(map[randr.Output]crtcConfig),
		power:    make(map[randr.Output]PowerStatus),
		nodes:    make(map[NodeID]*xNode),
		nextNode: 1,
	}
	resources, err := s.getScreenResourcesCurrent()
	if err != nil {
		return nil, xerrors.Errorf("get screen resources: %w", err)
	}
	s.cfgTs = resources.ConfigTimestamp
	s.initBacklight()
	return s, nil
}

func (s *XService) initBacklight() {
	sysBus, err := dbus.SystemBus()
	if err != nil {
		logger.Warning(err)
		return
	}
	s.blHelper = backlight.NewBacklight(sysBus)
	s.controllers, err = displayBl.List()
	if err != nil {
		logger.Warning("failed to list backlight controller:", err)
	}
}

func (s *XService) SetScreenPowerStatus(rsID uint64, status PowerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	output := randr.Output(rsID)
	outputInfo, err := s.getOutputInfo(output)
	if err != nil {
		return xerrors.Errorf("get output %d info: %w", rsID, err)
	}
	logger.Infof("set output %s(%d) power status %v", outputInfo.Name, rsID, status)

	if status.IsOn() {
		if cfg, ok := s.saved[output]; ok {
			err = s.setCrtcConfig(cfg)
			if err != nil {
				return err
			}
			delete(s.saved, output)
		}
		s.power[output] = status
		err = dpms.ForceLevelChecked(s.conn, dpms.DPMSModeOn).Check(s.conn)
		if err != nil {
			return xerrors.Errorf("set DPMS on: %w", err)
		}
		return nil
	}

	if outputInfo.Crtc != 0 {
		crtcInfo, err := s.getCrtcInfo(outputInfo.Crtc)
		if err != nil {
			return err
		}
		cfg := crtcConfig{
			crtc:     outputInfo.Crtc,
			outputs:  crtcInfo.Outputs,
			x:        crtcInfo.X,
			y:        crtcInfo.Y,
			rotation: crtcInfo.Rotation,
			mode:     crtcInfo.Mode,
		}
		err = s.setCrtcConfig(crtcConfig{crtc: outputInfo.Crtc, rotation: randr.RotationRotate0})
		if err != nil {
			return err
		}
		s.saved[output] = cfg
	}
	s.power[output] = status

	allOff, err := s.allConnectedOff()
	if err != nil {
		logger.Warning(err)
		return nil
	}
	if allOff {
		err = dpms.ForceLevelChecked(s.conn, dpms.DPMSModeOff).Check(s.conn)
		if err != nil {
			return xerrors.Errorf("set DPMS off: %w", err)
		}
	}
	return nil
}

func (s *XService) GetScreenPowerStatus(rsID uint64) (PowerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.power[randr.Output(rsID)]; ok {
		return status, nil
	}
	outputInfo, err := s.getOutputInfo(randr.Output(rsID))
	if err != nil {
		return PowerStatusInvalid, err
	}
	if outputInfo.Crtc == 0 {
		return PowerStatusOff, nil
	}
	return PowerStatusOn, nil
}

func (s *XService) allConnectedOff() (bool, error) {
	resources, err := s.getScreenResourcesCurrent()
	if err != nil {
		return false, err
	}
	for _, output := range resources.Outputs {
		outputInfo, err := s.getOutputInfo(output)
		if err != nil {
			return false, err
		}
		if outputInfo.Connection != randr.ConnectionConnected {
			continue
		}
		status, ok := s.power[output]
		if !ok || status.IsOn() {
			return false, nil
		}
	}
	return true, nil
}

func (s *XService) SetScreenBacklight(rsID uint64, level uint32) error {
	if level > MaxBacklightLevel {
		level = MaxBacklightLevel
	}
	s.mu.Lock()
	outputInfo, err := s.getOutputInfo(randr.Output(rsID))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !isBuiltinOutput(outputInfo.Name) {
		return xerrors.Errorf("output %s has no backlight", outputInfo.Name)
	}
	if s.blHelper == nil {
		return xerrors.New("backlight helper not available")
	}

	var errs error
	for _, controller := range s.controllers {
		br := int32(float64(controller.MaxBrightness) * float64(level) / MaxBacklightLevel)
		logger.Debugf("help set brightness %q max %v level %v br %v",
			controller.Name, controller.MaxBrightness, level, br)
		err := s.blHelper.SetBrightness(0, backlightTypeDisplay, controller.Name, br)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *XService) ReuseDisplayNode(node NodeID, cfg NodeConfig) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	output := randr.Output(cfg.RSID)
	var posX, posY int32
	if cfg.IsMirrored {
		src, ok := s.nodes[cfg.MirrorNodeID]
		if !ok {
			return InvalidNodeID, xerrors.Errorf("mirror source %d: %w", cfg.MirrorNodeID, ErrNoSuchNode)
		}
		posX, posY = src.x, src.y
		err := s.moveOutput(output, posX, posY)
		if err != nil {
			return InvalidNodeID, err
		}
	}

	if n, ok := s.nodes[node]; ok && node != InvalidNodeID {
		n.cfg = cfg
		n.output = output
		n.x, n.y = posX, posY
		return node, nil
	}
	id := s.nextNode
	s.nextNode++
	s.nodes[id] = &xNode{cfg: cfg, output: output, x: posX, y: posY}
	return id, nil
}

func (s *XService) RemoveDisplayNode(node NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[node]; !ok {
		return ErrNoSuchNode
	}
	delete(s.nodes, node)
	return nil
}

func (s *XService) SetScreenOffset(node NodeID, posX, posY int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[node]
	if !ok {
		return ErrNoSuchNode
	}
	err := s.moveOutput(n.output, posX, posY)
	if err != nil {
		return err
	}
	n.x, n.y = posX, posY
	return nil
}

func (s *XService) moveOutput(output randr.Output, posX, posY int32) error {
	outputInfo, err := s.getOutputInfo(output)
	if err != nil {
		return err
	}
	if outputInfo.Crtc == 0 {
		// 没有显示，记录位置即可
		return nil
	}
	crtcInfo, err := s.getCrtcInfo(outputInfo.Crtc)
	if err != nil {
		return err
	}
	return s.setCrtcConfig(crtcConfig{
		crtc:     outputInfo.Crtc,
		outputs:  crtcInfo.Outputs,
		x:        int16(posX),
		y:        int16(posY),
		rotation: crtcInfo.Rotation,
		mode:     crtcInfo.Mode,
	})
}

func (s *XService) Outputs() ([]OutputInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources, err := s.getScreenResourcesCurrent()
	if err != nil {
		return nil, err
	}
	var result []OutputInfo
	for _, output := range resources.Outputs {
		outputInfo, err := s.getOutputInfo(output)
		if err != nil {
			logger.Warningf("get output %d info failed: %v", output, err)
			continue
		}
		info := OutputInfo{
			RSID:      uint64(output),
			Name:      outputInfo.Name,
			Connected: outputInfo.Connection == randr.ConnectionConnected,
			IsBuiltin: isBuiltinOutput(outputInfo.Name),
			MmWidth:   outputInfo.MmWidth,
			MmHeight:  outputInfo.MmHeight,
			Modes:     toModeInfos(resources.Modes, outputInfo.Modes),
		}
		if outputInfo.Crtc != 0 {
			crtcInfo, err := s.getCrtcInfo(outputInfo.Crtc)
			if err == nil {
				info.Width = crtcInfo.Width
				info.Height = crtcInfo.Height
				info.ActiveModeID = uint32(crtcInfo.Mode)
			}
		}
		if info.Connected {
			data, err := s.getOutputEdid(output)
			if err != nil {
				logger.Warningf("get output %d edid failed: %v", output, err)
			} else if serial, err := edidIdentity(data); err == nil {
				info.Serial = serial
			}
		}
		result = append(result, info)
	}
	return result, nil
}

func (s *XService) setCrtcConfig(cfg crtcConfig) error {
	logger.Debugf("setCrtcConfig crtc: %v, cfgTs: %v, x: %v, y: %v,"+
		" mode: %v, rotation|reflect: %v, outputs: %v",
		cfg.crtc, s.cfgTs, cfg.x, cfg.y, cfg.mode, cfg.rotation, cfg.outputs)
	setCfg, err := randr.SetCrtcConfig(s.conn, cfg.crtc, 0, s.cfgTs,
		cfg.x, cfg.y, cfg.mode, cfg.rotation,
		cfg.outputs).Reply(s.conn)
	if err != nil {
		return err
	}
	if setCfg.Status != randr.SetConfigSuccess {
		return fmt.Errorf("failed to configure crtc %v: status %v", cfg.crtc, setCfg.Status)
	}
	// 配置改变后时间戳也会变
	resources, err := s.getScreenResourcesCurrent()
	if err == nil {
		s.cfgTs = resources.ConfigTimestamp
	}
	return nil
}

func (s *XService) getCrtcInfo(crtc randr.Crtc) (*randr.GetCrtcInfoReply, error) {
	crtcInfo, err := randr.GetCrtcInfo(s.conn, crtc, s.cfgTs).Reply(s.conn)
	if err != nil {
		return nil, err
	}
	if crtcInfo.Status != randr.StatusSuccess {
		return nil, fmt.Errorf("status is not success, is %v", crtcInfo.Status)
	}
	return crtcInfo, err
}

func (s *XService) getOutputInfo(outputId randr.Output) (*randr.GetOutputInfoReply, error) {
	outputInfo, err := randr.GetOutputInfo(s.conn, outputId, s.cfgTs).Reply(s.conn)
	if err != nil {
		return nil, err
	}
	if outputInfo.Status != randr.StatusSuccess {
		return nil, fmt.Errorf("status is not success, is %v", outputInfo.Status)
	}
	return outputInfo, err
}

func (s *XService) getOutputEdid(output randr.Output) ([]byte, error) {
	atomEDID, err := s.conn.GetAtom("EDID")
	if err != nil {
		return nil, err
	}

	reply, err := randr.GetOutputProperty(s.conn, output,
		atomEDID, x.AtomInteger,
		0, 32, false, false).Reply(s.conn)
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (s *XService) getScreenResourcesCurrent() (*randr.GetScreenResourcesCurrentReply, error) {
	root := s.conn.GetDefaultScreen().Root
	return randr.GetScreenResourcesCurrent(s.conn, root).Reply(s.conn)
}

var errEdidTooShort = xerrors.New("edid too short")

// edidIdentity 返回 厂商-型号-序列号 形式的显示器标识
func edidIdentity(data []byte) (string, error) {
	if len(data) < 128 {
		return "", errEdidTooShort
	}
	e, err := edid.New(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%d", string(e.PNPID[:]), e.Model, e.Serial), nil
}
