// Package dhcpmain starts a ddhcp node from a Dhcpfile.
package dhcpmain

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"

	// all directives and storage drivers
	_ "github.com/nextdhcp/ddhcp/core"
)

var (
	conf        string
	printVer    bool
	listPlugins bool
	serverType  = "dhcpv4"
)

func init() {
	caddy.DefaultConfigFile = "Dhcpfile"
	caddy.Quiet = false

	flag.StringVar(&conf, "conf", "", "Dhcpfile to load (default \""+caddy.DefaultConfigFile+"\")")
	flag.BoolVar(&caddy.Quiet, "quiet", false, "Quiet mode (no initialization output)")
	flag.BoolVar(&printVer, "version", false, "Show version")
	flag.BoolVar(&listPlugins, "plugins", false, "List installed plugins")

	caddy.RegisterCaddyfileLoader("flag", caddy.LoaderFunc(configLoader))
	caddy.SetDefaultCaddyfileLoader("default", caddy.LoaderFunc(defaultLoader))

	caddy.AppName = "ddhcp"
	caddy.AppVersion = "v0.1.0"
}

// Run starts the node and blocks until the server stopped
func Run() {
	flag.Parse()

	if printVer {
		fmt.Printf("%s %s\n", caddy.AppName, caddy.AppVersion)
		return
	}

	if listPlugins {
		fmt.Println(caddy.DescribePlugins())
		return
	}

	caddy.TrapSignals()

	dhcpfile, err := caddy.LoadCaddyfile(serverType)
	if err != nil {
		log.Fatalf("failed to load %s: %s", caddy.DefaultConfigFile, err)
	}

	instance, err := caddy.Start(dhcpfile)
	if err != nil {
		log.Fatalf("failed to start: %s", err)
	}

	instance.Wait()
}

func configLoader(serverType string) (caddy.Input, error) {
	if conf == "" {
		return nil, nil
	}

	if conf == "stdin" || conf == "-" {
		return caddy.CaddyfileFromPipe(os.Stdin, serverType)
	}

	file, err := os.ReadFile(conf)
	if err != nil {
		return nil, err
	}

	return caddy.CaddyfileInput{
		Contents:       file,
		Filepath:       conf,
		ServerTypeName: serverType,
	}, nil
}

func defaultLoader(serverType string) (caddy.Input, error) {
	conf = caddy.DefaultConfigFile

	input, err := configLoader(serverType)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	return input, err
}
