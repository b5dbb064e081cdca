package input

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		in    sdl.Event
		want  Event
		known bool
	}{
		{"quit", &sdl.QuitEvent{Type: sdl.QUIT}, Event{Type: EventQuit}, true},
		{
			"resize",
			&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESIZED, Data1: 640, Data2: 480},
			Event{Type: EventWindowResize, Width: 640, Height: 480},
			true,
		},
		{
			"key down",
			&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_RIGHT}},
			Event{Type: EventKeyDown, Key: sdl.SCANCODE_RIGHT},
			true,
		},
		{
			"motion",
			&sdl.MouseMotionEvent{Type: sdl.MOUSEMOTION, X: 10, Y: 20, XRel: 3, YRel: -4},
			Event{Type: EventMouseMove, MouseX: 10, MouseY: 20, DX: 3, DY: -4},
			true,
		},
		{
			"button",
			&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONDOWN, Button: sdl.BUTTON_RIGHT, Clicks: 2, X: 1, Y: 2},
			Event{Type: EventMouseDown, Button: ButtonRight, Clicks: 2, MouseX: 1, MouseY: 2},
			true,
		},
		{
			"wheel flipped",
			&sdl.MouseWheelEvent{Type: sdl.MOUSEWHEEL, Y: 2, Direction: sdl.MOUSEWHEEL_FLIPPED},
			Event{Type: EventMouseWheel, DY: -2},
			true,
		},
		{
			"drop",
			&sdl.DropEvent{Type: sdl.DROPFILE, File: "/tmp/liver.stl"},
			Event{Type: EventDrop, Path: "/tmp/liver.stl"},
			true,
		},
		{
			"window moved",
			&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MOVED},
			Event{},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.in)
			if ok != tt.known {
				t.Fatalf("handled = %v, want %v", ok, tt.known)
			}
			if got != tt.want {
				t.Errorf("Translate = %+v, want %+v", got, tt.want)
			}
		})
	}
}
