package led

import (
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/tapelight/internal/frame"
)

// refreshRate is the NRZ bit clock base in kHz for WS281x-class strips.
const refreshRate physic.Frequency = 800

// SPISink drives one device's LEDs over an NRZ SPI strip controller. When
// no SPI port is present it falls back to an ANSI terminal drawer so the
// frame stream is still observable.
type SPISink struct {
	DeviceID string

	drawer display.Drawer
	port   spi.PortCloser
	img    *image.NRGBA
}

// NewSPISink opens the named SPI port ("" = first available) for a device
// with ledCount pixels.
func NewSPISink(deviceID, portName string, ledCount int) (*SPISink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("led: host init: %w", err)
	}
	s := &SPISink{DeviceID: deviceID, img: image.NewNRGBA(image.Rect(0, 0, ledCount, 1))}

	port, err := spireg.Open(portName)
	if err != nil {
		// No SPI on this machine; draw to the terminal instead.
		s.drawer = screen.New(ledCount)
		return s, nil
	}
	opts := nrzled.Opts{
		NumPixels: ledCount,
		Channels:  3,
		Freq:      ((refreshRate * 3) + 100) * physic.KiloHertz,
	}
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("led: nrzled on %q: %w", portName, err)
	}
	s.port = port
	s.drawer = dev
	return s, nil
}

// NewSPISinkWith wraps an already-open port, for tests with spitest.
func NewSPISinkWith(deviceID string, port spi.Port, ledCount int) (*SPISink, error) {
	opts := nrzled.Opts{
		NumPixels: ledCount,
		Channels:  3,
		Freq:      ((refreshRate * 3) + 100) * physic.KiloHertz,
	}
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		return nil, fmt.Errorf("led: nrzled: %w", err)
	}
	return &SPISink{
		DeviceID: deviceID,
		drawer:   dev,
		img:      image.NewNRGBA(image.Rect(0, 0, ledCount, 1)),
	}, nil
}

func (s *SPISink) Write(snap frame.Snapshot) error {
	region := snap.Region(s.DeviceID)
	if region == nil {
		return fmt.Errorf("led: device %q absent from snapshot", s.DeviceID)
	}
	n := s.img.Rect.Max.X
	if len(region) < n {
		n = len(region)
	}
	for x := 0; x < n; x++ {
		c := region[x]
		s.img.SetNRGBA(x, 0, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
	}
	return s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{})
}

func (s *SPISink) Close() error {
	if s.drawer != nil {
		if err := s.drawer.Halt(); err != nil && s.port != nil {
			s.port.Close()
			return err
		}
	}
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}
