// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"sort"

	"github.com/linuxdeepin/go-lib/log"
)

// dag 记录模块之间的依赖，边由依赖指向被依赖者的使用方
type dag struct {
	nodes map[string]struct{}
	edges map[string][]string
}

func newDAG() *dag {
	return &dag{
		nodes: make(map[string]struct{}),
		edges: make(map[string][]string),
	}
}

func (g *dag) addNode(id string) bool {
	if _, ok := g.nodes[id]; ok {
		return false
	}
	g.nodes[id] = struct{}{}
	return true
}

func (g *dag) addEdge(from, to string) {
	g.edges[from] = append(g.edges[from], to)
}

// topologicalSort 返回依赖在前的顺序，存在环时返回 false
func (g *dag) topologicalSort() ([]string, bool) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] += 0
		for _, to := range g.edges[id] {
			indegree[to]++
		}
	}

	var queue []string
	for id, n := range indegree {
		if n == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(g.nodes))
	for len(queue) != 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)
		next := append([]string(nil), g.edges[id]...)
		sort.Strings(next)
		for _, to := range next {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	return result, len(result) == len(g.nodes)
}

type DAGBuilder struct {
	modules         Modules
	enablingModules []string
	disableModules  map[string]struct{}
	flag            EnableFlag

	log *log.Logger

	dag *dag
}

func NewDAGBuilder(loader *Loader, enablingModules []string, disableModules []string, flag EnableFlag) *DAGBuilder {
	disableModulesMap := map[string]struct{}{}
	for _, name := range disableModules {
		if _, ok := loader.modules[name]; !ok {
			loader.log.Warningf("disabled module(%s) is no existed", name)
			continue
		}
		disableModulesMap[name] = struct{}{}
	}

	return &DAGBuilder{
		modules:         loader.modules,
		enablingModules: enablingModules,
		disableModules:  disableModulesMap,
		flag:            flag,
		log:             loader.log,
		dag:             newDAG(),
	}
}

func (builder *DAGBuilder) buildDAG() error {
	queue := make([]string, 0, len(builder.enablingModules))
	for _, name := range builder.enablingModules {
		if builder.dag.addNode(name) {
			queue = append(queue, name)
		}
	}
	for len(queue) != 0 {
		name := queue[0]
		queue = queue[1:]
		module, ok := builder.modules[name]
		if !ok {
			if builder.flag.HasFlag(EnableFlagIgnoreMissingModule) {
				builder.log.Info("no such a module named", name)
				delete(builder.dag.nodes, name)
				continue
			}
			return &EnableError{ModuleName: name, Code: ErrorMissingModule}
		}
		if _, ok := builder.disableModules[name]; ok {
			if !builder.flag.HasFlag(EnableFlagForceStart) {
				return &EnableError{ModuleName: name, Code: ErrorConflict}
			}
		}
		for _, dependency := range module.GetDependencies() {
			if _, ok := builder.modules[dependency]; !ok {
				return &EnableError{ModuleName: name, Code: ErrorNoDependencies, detail: dependency}
			}
			if builder.dag.addNode(dependency) {
				queue = append(queue, dependency)
			}
			builder.dag.addEdge(dependency, name)
		}
	}
	return nil
}

func (builder *DAGBuilder) Execute() (*dag, error) {
	err := builder.buildDAG()
	if err != nil {
		return nil, err
	}

	return builder.dag, nil
}
