package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/smazurov/usbdisplay/internal/frame"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/sink"
)

func TestReadFirstMatching(t *testing.T) {
	block, err := identity.Synthetic(1920, 1080, 60)
	if err != nil {
		t.Fatal(err)
	}
	matcher := adapter.NewMatcher(adapter.MatchWhitelist)

	t.Run("skips other devices", func(t *testing.T) {
		bus := &adapter.FakeBus{
			Devices: []adapter.DeviceInfo{
				{Ref: adapter.DeviceRef{Bus: 1, Address: 2}, Vendor: 0x046d, Product: 0xc52b},
				{Ref: adapter.DeviceRef{Bus: 1, Address: 4}, Vendor: adapter.VendorID, Product: 0x2113},
			},
			Identity: block.Bytes(),
		}
		got, err := readFirstMatching(bus, matcher)
		if err != nil {
			t.Fatalf("readFirstMatching() error: %v", err)
		}
		if got.Fingerprint() != block.Fingerprint() {
			t.Errorf("fingerprint = %s, want %s", got.Fingerprint(), block.Fingerprint())
		}
		if bus.OpenHandles() != 0 {
			t.Errorf("%d handles left open", bus.OpenHandles())
		}
	})

	t.Run("no adapter", func(t *testing.T) {
		bus := &adapter.FakeBus{
			Devices: []adapter.DeviceInfo{{Ref: adapter.DeviceRef{Bus: 1, Address: 2}, Vendor: 0x046d, Product: 0xc52b}},
		}
		if _, err := readFirstMatching(bus, matcher); !errors.Is(err, errNoAdapter) {
			t.Errorf("error = %v, want errNoAdapter", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		bus := &adapter.FakeBus{
			Devices:  []adapter.DeviceInfo{{Ref: adapter.DeviceRef{Bus: 1, Address: 4}, Vendor: adapter.VendorID, Product: 0x2113}},
			Identity: block.Bytes(),
			FailOn:   2,
		}
		if _, err := readFirstMatching(bus, matcher); err == nil {
			t.Error("expected an error when the second half fails")
		}
	})
}

func TestPrintIdentity(t *testing.T) {
	block, err := identity.Synthetic(1280, 720, 60)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	printIdentity(&out, block)

	for _, want := range []string{block.Fingerprint(), "256 bytes", "1280x720@60", "Checksum:    true"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestIdentityCmdSynthesize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "edid.bin")
	cmd := CreateIdentityCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--synthesize", "1024x768@60", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	block, err := identity.Load(out)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	mode, err := block.PreferredMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.Width != 1024 || mode.Height != 768 {
		t.Errorf("preferred mode = %s, want 1024x768", mode)
	}

	bad := CreateIdentityCmd()
	bad.SetOut(&bytes.Buffer{})
	bad.SetErr(&bytes.Buffer{})
	bad.SetArgs([]string{"--synthesize", "big"})
	if err := bad.Execute(); err == nil {
		t.Error("expected an error for a malformed mode")
	}
}

func TestPrintTopology(t *testing.T) {
	tests := []struct {
		name string
		topo capture.Topology
		want []string
	}{
		{
			name: "extended connected",
			topo: capture.Topology{Outputs: []capture.Output{
				{Name: "eDP-1", Width: 1920, Height: 1080, Connection: capture.Connected},
				{Name: "DVI-I-1-1", X: 1920, Width: 1280, Height: 720, Connection: capture.Connected},
			}},
			want: []string{"Primary:  eDP-1", "Extended: DVI-I-1-1"},
		},
		{
			name: "extended without crtc",
			topo: capture.Topology{Outputs: []capture.Output{
				{Name: "eDP-1", Width: 1920, Height: 1080, Connection: capture.Connected},
				{Name: "DVI-I-1-1", Connection: capture.Connected},
			}},
			want: []string{"Primary:  eDP-1", "Extended: none"},
		},
		{
			name: "empty",
			topo: capture.Topology{},
			want: []string{"No outputs reported", "Primary:  none"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printTopology(&out, tt.topo, capture.DefaultExtendedOutput)
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func writeDump(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.dump")
	d := sink.NewDump(path)
	if err := d.Init(nil); err != nil {
		t.Fatal(err)
	}
	if err := d.SetResolution(8, 4); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		buf, err := frame.New(8, 4)
		if err != nil {
			t.Fatal(err)
		}
		buf.ForceOpaque()
		if err := d.StartEncode(buf); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Teardown(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDumpInfoCmd(t *testing.T) {
	cmd := CreateDumpInfoCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--verify", writeDump(t)})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"resolution 8x4", "frame 8x4 pitch 32", "4 records, 3 frames"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintDumpVerifyFails(t *testing.T) {
	records := []sink.Record{{Kind: sink.RecordFrame, Seq: 1, Width: 8, Height: 4, Pitch: 32, Size: 128, Codec: sink.CodecRaw, Data: make([]byte, 10)}}
	if err := printDump(&bytes.Buffer{}, records, true); err == nil {
		t.Error("expected a size mismatch error")
	}
	if err := printDump(&bytes.Buffer{}, records, false); err != nil {
		t.Errorf("printDump() without verify error: %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := CreateVersionCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "usbdisplay ") {
		t.Errorf("output = %q", stdout.String())
	}
}
