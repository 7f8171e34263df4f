// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jouyouyun/hardware/dmi"
	"github.com/linuxdeepin/go-lib/strv"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

var DefaultProfilePaths = []string{
	"/etc/deepin/dde-screen-daemon/profile.yaml",
	"/usr/share/dde-screen-daemon/profile.yaml",
}

// SingleThresholds 单轴设备的开合角度阈值，单位为度
type SingleThresholds struct {
	AngleMin           float64 `yaml:"angleMin"`
	OpenHalfFoldedMin  float64 `yaml:"openHalfFoldedMin"`
	CloseHalfFoldedMin float64 `yaml:"closeHalfFoldedMin"`
	HalfFoldedMax      float64 `yaml:"halfFoldedMax"`
	HalfFoldedBuffer   float64 `yaml:"halfFoldedBuffer"`
	LargerBoundary     float64 `yaml:"largerBoundary"`
	TentExitMin        float64 `yaml:"tentExitMin"`
	TentExitMax        float64 `yaml:"tentExitMax"`
}

type DualThresholds struct {
	Folded          float64 `yaml:"folded"`
	Expand          float64 `yaml:"expand"`
	HalfFoldedMax   float64 `yaml:"halfFoldedMax"`
	HalfFoldedMin   float64 `yaml:"halfFoldedMin"`
	FoldedLower     float64 `yaml:"foldedLower"`
	FoldedUpper     float64 `yaml:"foldedUpper"`
	HallZeroInvalid float64 `yaml:"hallZeroInvalid"`
	TentExitMin     float64 `yaml:"tentExitMin"`
	TentExitMax     float64 `yaml:"tentExitMax"`
	HallWaitMs      int     `yaml:"hallWaitMs"`
}

type SecondaryConfig struct {
	// 连续多少次采样分类一致才提交状态
	StableSamples    int     `yaml:"stableSamples"`
	AngleMax         float64 `yaml:"angleMax"`
	NotifyAngleDelta float64 `yaml:"notifyAngleDelta"`
}

type Profile struct {
	Topology         Topology              `yaml:"topology"`
	Products         map[Topology][]string `yaml:"products"`
	OneStepTimeoutMs int                   `yaml:"oneStepTimeoutMs"`
	Single           SingleThresholds      `yaml:"single"`
	Dual             DualThresholds        `yaml:"dual"`
	Secondary        SecondaryConfig       `yaml:"secondary"`
}

func DefaultProfile() *Profile {
	return &Profile{
		OneStepTimeoutMs: int(defaultOneStepTimeout / time.Millisecond),
		Single: SingleThresholds{
			AngleMin:           0,
			OpenHalfFoldedMin:  25,
			CloseHalfFoldedMin: 70,
			HalfFoldedMax:      140,
			HalfFoldedBuffer:   10,
			LargerBoundary:     90,
			TentExitMin:        5,
			TentExitMax:        175,
		},
		Dual: DualThresholds{
			Folded:          85,
			Expand:          145,
			HalfFoldedMax:   135,
			HalfFoldedMin:   85,
			FoldedLower:     10,
			FoldedUpper:     20,
			HallZeroInvalid: 170,
			TentExitMin:     5,
			TentExitMax:     110,
			HallWaitMs:      300,
		},
		Secondary: SecondaryConfig{
			StableSamples:    2,
			AngleMax:         180,
			NotifyAngleDelta: 0.5,
		},
	}
}

func (p *Profile) oneStepTimeout() time.Duration {
	if p == nil || p.OneStepTimeoutMs <= 0 {
		return defaultOneStepTimeout
	}
	return time.Duration(p.OneStepTimeoutMs) * time.Millisecond
}

func (p *Profile) hallWait() time.Duration {
	if p == nil || p.Dual.HallWaitMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(p.Dual.HallWaitMs) * time.Millisecond
}

func (p *Profile) validate() error {
	if p.Topology != "" && !p.Topology.IsValid() {
		return xerrors.Errorf("invalid topology %q", p.Topology)
	}
	for topology := range p.Products {
		if !topology.IsValid() {
			return xerrors.Errorf("invalid topology %q in products", topology)
		}
	}
	s := p.Single
	if !(s.AngleMin <= s.OpenHalfFoldedMin && s.OpenHalfFoldedMin <= s.CloseHalfFoldedMin &&
		s.CloseHalfFoldedMin < s.HalfFoldedMax) {
		return xerrors.New("single thresholds out of order")
	}
	if s.HalfFoldedBuffer < 0 || s.TentExitMin >= s.TentExitMax {
		return xerrors.New("invalid single buffer or tent range")
	}
	d := p.Dual
	if !(d.FoldedLower <= d.FoldedUpper && d.FoldedUpper <= d.HalfFoldedMin &&
		d.HalfFoldedMin <= d.HalfFoldedMax && d.HalfFoldedMax < d.Expand) {
		return xerrors.New("dual thresholds out of order")
	}
	if d.TentExitMin >= d.TentExitMax {
		return xerrors.New("invalid dual tent range")
	}
	if p.Secondary.StableSamples < 1 {
		return xerrors.New("secondary stableSamples must be positive")
	}
	return nil
}

// LoadProfile 依次查找 paths，使用第一个存在的文件，文件中缺省的字段保持默认值。
// 都不存在时返回默认配置，path 为空。
func LoadProfile(paths []string) (profile *Profile, path string, err error) {
	for _, file := range paths {
		data, err := os.ReadFile(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", xerrors.Errorf("read profile %s: %w", file, err)
		}
		profile, err = parseProfile(data)
		if err != nil {
			return nil, "", xerrors.Errorf("parse profile %s: %w", file, err)
		}
		return profile, file, nil
	}
	return DefaultProfile(), "", nil
}

func parseProfile(data []byte) (*Profile, error) {
	profile := DefaultProfile()
	err := yaml.Unmarshal(data, profile)
	if err != nil {
		return nil, err
	}
	err = profile.validate()
	if err != nil {
		return nil, err
	}
	logger.Debug("fold profile:", spew.Sdump(profile))
	return profile, nil
}

// SelectTopology 优先使用 profile 中明确指定的形态，否则按产品名匹配，默认单轴
func SelectTopology(p *Profile, productName string) Topology {
	if p.Topology != "" {
		return p.Topology
	}
	if productName != "" {
		for _, topology := range []Topology{TopologyDual, TopologySecondary, TopologySingle} {
			if strv.Strv(p.Products[topology]).Contains(productName) {
				return topology
			}
		}
	}
	return TopologySingle
}

func ProductName() string {
	info, err := dmi.GetDMI()
	if err != nil {
		logger.Warning("failed to get dmi info:", err)
		return ""
	}
	return info.ProductName
}
