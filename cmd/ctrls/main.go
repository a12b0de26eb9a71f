package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
	dev "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"armor-exposure/pkg/camera"
)

func main() {
	devName := camera.DefaultDevice
	flag.StringVar(&devName, "d", devName, "device name (path)")
	asJSON := flag.Bool("json", false, "print controls as json")
	gain := flag.Int("gain", -1, "write this raw gain value before reading")
	manual := flag.Bool("manual", false, "switch auto exposure off before reading")
	flag.Parse()

	device, err := dev.Open(devName)
	if err != nil {
		log.Fatalf("failed to open device: %s", err)
	}
	defer device.Close()

	if *manual {
		if err := device.SetControlValue(camera.CtrlExposureAuto, camera.ExposureManual); err != nil {
			log.Fatalf("set manual exposure: %s", err)
		}
	}
	if *gain >= 0 {
		if err := device.SetControlValue(camera.CtrlGain, v4l2.CtrlValue(*gain)); err != nil {
			log.Fatalf("set gain: %s", err)
		}
	}

	ctrls := camera.ReadControls(device.Fd())
	if !*asJSON {
		for _, ctrl := range ctrls {
			fmt.Println(camera.CtrlToString(ctrl))
		}
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(camera.ToControls(ctrls)); err != nil {
		panic(err)
	}
}
