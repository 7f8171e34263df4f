// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"os"

	"github.com/linuxdeepin/dde-screen-daemon/loader"
	"github.com/linuxdeepin/go-lib/dbusutil"
	. "github.com/linuxdeepin/go-lib/gettext"
	"github.com/linuxdeepin/go-lib/log"

	// modules:
	_ "github.com/linuxdeepin/dde-screen-daemon/screen1"
)

const dbusServiceName = "org.deepin.dde.Screen1"

var logger = log.NewLogger("daemon/dde-screen-daemon")

var verbose bool

func init() {
	// -v | -verbose
	const verboseUsage = "Show much more message, shorthand for debug log level."
	flag.BoolVar(&verbose, "v", false, verboseUsage)
	flag.BoolVar(&verbose, "verbose", false, verboseUsage)
}

func main() {
	flag.Parse()

	service, err := dbusutil.NewSystemService()
	if err != nil {
		logger.Fatal("failed to new system service", err)
	}

	hasOwner, err := service.NameHasOwner(dbusServiceName)
	if err != nil {
		logger.Fatal("failed to call NameHasOwner:", err)
	}
	if hasOwner {
		logger.Warningf("name %q already has the owner", dbusServiceName)
		os.Exit(1)
	}

	// 系统级服务，无需设置LANG和LANGUAGE，保证翻译不受到影响
	_ = os.Setenv("LANG", "")
	_ = os.Setenv("LANGUAGE", "")

	InitI18n()
	BindTextdomainCodeset("dde-daemon", "UTF-8")
	Textdomain("dde-daemon")

	logger.SetRestartCommand("/usr/lib/deepin-daemon/dde-screen-daemon")

	if verbose || os.Getenv("DDE_DEBUG") != "" {
		logger.SetLogLevel(log.LevelDebug)
		loader.SetLogLevel(log.LevelDebug)
	}

	loader.SetService(service)
	loader.StartAll()
	defer loader.StopAll()

	service.Wait()
}
