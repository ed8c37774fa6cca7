package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// ListInputDevices enumerates input-capable devices.
func ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var defName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defName = def.Name
	}

	devs := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devs = append(devs, Device{
			Index:    i,
			Name:     info.Name,
			Channels: info.MaxInputChannels,
			Loopback: isLoopback(info.Name),
			Default:  info.Name == defName,
		})
	}
	return devs, nil
}

// paStream keeps portaudio initialised for the lifetime of one stream.
type paStream struct {
	*portaudio.Stream
}

func (s *paStream) Close() error {
	err := s.Stream.Close()
	portaudio.Terminate()
	return err
}

// openPortAudio opens a 16 kHz mono float32 callback stream on dev.
func openPortAudio(dev Device, onBlock func([]float32)) (inputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	infos, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if dev.Index < 0 || dev.Index >= len(infos) {
		portaudio.Terminate()
		return nil, fmt.Errorf("device index %d out of range", dev.Index)
	}
	info := infos[dev.Index]

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      SampleRate,
		FramesPerBuffer: FramesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, func(in []float32) { onBlock(in) })
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	return &paStream{Stream: stream}, nil
}
