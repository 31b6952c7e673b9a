// ST7735 ozone level indicator.
//
// Renders the measured concentration as a full-screen color following the
// EPA ozone breakpoints, so a glance at the little TFT tells you whether to
// open a window.
package display

import (
	"image"
	"image/color"
	"sync"

	"github.com/asssaf/st7735-go/st7735"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	WIDTH  int = 80
	HEIGHT int = 160
)

// EPA 8-hour ozone AQI breakpoints, in ppb.
var levels = []struct {
	max float64
	c   color.RGBA
}{
	{54, color.RGBA{R: 0, G: 228, B: 0, A: 255}},     // good
	{70, color.RGBA{R: 255, G: 255, B: 0, A: 255}},   // moderate
	{85, color.RGBA{R: 255, G: 126, B: 0, A: 255}},   // unhealthy for sensitive groups
	{105, color.RGBA{R: 255, G: 0, B: 0, A: 255}},    // unhealthy
	{200, color.RGBA{R: 143, G: 63, B: 151, A: 255}}, // very unhealthy
}

var hazardous = color.RGBA{R: 126, G: 0, B: 35, A: 255}

var once sync.Once
var display *Display

type Display struct {
	p   spi.PortCloser
	dev *st7735.Dev
}

// Init opens the display on SPI0.1 with data/command on GPIO9 and backlight
// on GPIO12 (the Enviro+ wiring).
func Init() (*Display, error) {
	var err error
	once.Do(func() {
		if _, err = host.Init(); err != nil {
			return
		}
		if _, err = driverreg.Init(); err != nil {
			return
		}

		display = &Display{}
		display.p, err = spireg.Open("SPI0.1")
		if err != nil {
			return
		}
		display.dev, err = st7735.New(display.p.(spi.Port), gpioreg.ByName("GPIO9"), nil, gpioreg.ByName("GPIO12"), &st7735.DefaultOpts)
	})

	return display, err
}

func (d *Display) Close() error {
	return d.p.Close()
}

// ShowLevel paints the screen with the color for the given ozone
// concentration in ppb.
func (d *Display) ShowLevel(ppb float64) error {
	return d.FillScreen(colorFor(ppb))
}

func colorFor(ppb float64) color.RGBA {
	for _, l := range levels {
		if ppb <= l.max {
			return l.c
		}
	}
	return hazardous
}

func (d *Display) FillScreen(c color.RGBA) error {
	bounds := image.Rectangle{Min: image.Point{0, 0}, Max: image.Point{WIDTH, HEIGHT}}
	img := image.NewRGBA(bounds)
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			img.Set(x, y, c)
		}
	}
	return d.dev.DisplayImage(0, 0, img)
}

// PowerOff turns the backlight off.
func (d *Display) PowerOff() error {
	d.dev.SetBacklight(false)
	return nil
}

// PowerOn turns the backlight on.
func (d *Display) PowerOn() error {
	d.dev.SetBacklight(true)
	return nil
}
