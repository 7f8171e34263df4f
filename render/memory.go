// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/xerrors"
)

type memNode struct {
	cfg  NodeConfig
	x, y int32
}

// MemoryService 是进程内的渲染服务实现，没有 X 连接（比如 wayland 会话或
// 无头环境）时使用，也可以通过 SetFailure 注入失败。
type MemoryService struct {
	mu        sync.Mutex
	outputs   map[uint64]OutputInfo
	power     map[uint64]PowerStatus
	backlight map[uint64]uint32
	nodes     map[NodeID]*memNode
	nextNode  NodeID
	failures  map[string]error
	// 只对单个输出生效的电源设置失败
	powerFailures map[uint64]error
	calls         []string
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		outputs:   make(map[uint64]OutputInfo),
		power:     make(map[uint64]PowerStatus),
		backlight: make(map[uint64]uint32),
		nodes:     make(map[NodeID]*memNode),
		nextNode:  1,
		failures:  make(map[string]error),

		powerFailures: make(map[uint64]error),
	}
}

// AddOutput 注册一个输出，未注册的 rsID 调用会返回 ErrNoSuchScreen
func (s *MemoryService) AddOutput(info OutputInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[info.RSID] = info
	if _, ok := s.power[info.RSID]; !ok {
		s.power[info.RSID] = PowerStatusOn
	}
}

// SetFailure 让名为 op 的调用返回 err，err 为 nil 时清除
func (s *MemoryService) SetFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetPowerFailure 让 rsID 上的 SetScreenPowerStatus 返回 err，err 为 nil 时清除
func (s *MemoryService) SetPowerFailure(rsID uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.powerFailures, rsID)
		return
	}
	s.powerFailures[rsID] = err
}

// Calls 返回调用记录，用于检查调用顺序
func (s *MemoryService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *MemoryService) record(op string, format string, args ...interface{}) error {
	s.calls = append(s.calls, op+" "+fmt.Sprintf(format, args...))
	return s.failures[op]
}

func (s *MemoryService) SetScreenPowerStatus(rsID uint64, status PowerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetScreenPowerStatus", "%d %v", rsID, status); err != nil {
		return err
	}
	if err := s.powerFailures[rsID]; err != nil {
		return err
	}
	if _, ok := s.outputs[rsID]; !ok {
		return ErrNoSuchScreen
	}
	s.power[rsID] = status
	return nil
}

func (s *MemoryService) GetScreenPowerStatus(rsID uint64) (PowerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.power[rsID]
	if !ok {
		return PowerStatusInvalid, ErrNoSuchScreen
	}
	return status, nil
}

func (s *MemoryService) SetScreenBacklight(rsID uint64, level uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetScreenBacklight", "%d %d", rsID, level); err != nil {
		return err
	}
	if _, ok := s.outputs[rsID]; !ok {
		return ErrNoSuchScreen
	}
	s.backlight[rsID] = level
	return nil
}

func (s *MemoryService) Backlight(rsID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlight[rsID]
}

func (s *MemoryService) ReuseDisplayNode(node NodeID, cfg NodeConfig) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ReuseDisplayNode", "%d %d %v", node, cfg.RSID, cfg.IsMirrored); err != nil {
		return InvalidNodeID, err
	}
	if cfg.IsMirrored {
		if _, ok := s.nodes[cfg.MirrorNodeID]; !ok {
			return InvalidNodeID, xerrors.Errorf("mirror source %d: %w", cfg.MirrorNodeID, ErrNoSuchNode)
		}
	}
	if n, ok := s.nodes[node]; ok && node != InvalidNodeID {
		n.cfg = cfg
		return node, nil
	}
	id := s.nextNode
	s.nextNode++
	s.nodes[id] = &memNode{cfg: cfg}
	return id, nil
}

func (s *MemoryService) RemoveDisplayNode(node NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RemoveDisplayNode", "%d", node); err != nil {
		return err
	}
	if _, ok := s.nodes[node]; !ok {
		return ErrNoSuchNode
	}
	delete(s.nodes, node)
	return nil
}

func (s *MemoryService) SetScreenOffset(node NodeID, x, y int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetScreenOffset", "%d %d %d", node, x, y); err != nil {
		return err
	}
	n, ok := s.nodes[node]
	if !ok {
		return ErrNoSuchNode
	}
	n.x, n.y = x, y
	return nil
}

// Node 返回节点配置，用于检查重建结果
func (s *MemoryService) Node(node NodeID) (NodeConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[node]
	if !ok {
		return NodeConfig{}, false
	}
	return n.cfg, true
}

func (s *MemoryService) Outputs() ([]OutputInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]OutputInfo, 0, len(s.outputs))
	for _, info := range s.outputs {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RSID < result[j].RSID
	})
	return result, nil
}
