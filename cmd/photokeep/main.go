package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nir0k/photokeep/internal/app"
	"github.com/spf13/pflag"
)

func main() {
	var opts app.Options

	pflag.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the YAML configuration file")
	pflag.StringVarP(&opts.Backend, "backend", "b", "", "Storage backend override (scoped or library)")
	pflag.StringVarP(&opts.ImagePath, "image", "i", "", "Image file to capture")
	pflag.BoolVar(&opts.Front, "front", false, "Mark the capture as taken with the front (mirroring) lens")
	pflag.StringVarP(&opts.Description, "describe", "d", "", "Description to attach to the captured photo")
	pflag.StringVarP(&opts.GPXPath, "gpx", "g", "", "GPX track to derive the capture location from")
	pflag.Float64Var(&opts.Latitude, "lat", 0, "Capture latitude (with --lon)")
	pflag.Float64Var(&opts.Longitude, "lon", 0, "Capture longitude (with --lat)")
	pflag.Float64Var(&opts.Altitude, "alt", 0, "Capture altitude in meters")
	pflag.StringVarP(&opts.LogLevel, "log-level", "l", "", "Logging level for the log file (defaults to the configured level, then info)")
	pflag.StringVar(&opts.LogFile, "log-file", "", "Optional log file path (defaults to the configured path, then a file next to the binary)")

	pflag.Parse()

	opts.HasFix = pflag.CommandLine.Changed("lat") && pflag.CommandLine.Changed("lon")

	args := pflag.Args()
	if len(args) > 0 {
		opts.Command = args[0]
		opts.Args = args[1:]
	}

	ctx := context.Background()
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "photokeep failed: %v\n", err)
		os.Exit(1)
	}
}
