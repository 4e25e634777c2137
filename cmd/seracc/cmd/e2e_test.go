package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// execute runs the root command with args against the simulator and returns
// what it printed on stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, filepath.Join(t.TempDir(), "config.yaml"), args...)
}

// executeWith is execute with the settings file at path.
func executeWith(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()

	// Reset flags to prevent accumulation between tests
	verbose = false
	busKind = "sim"
	descFiles = nil
	jsonOut = false
	simIDCode = 0
	dumpFields = false
	snapLabel, snapDiff, snapLive = "", "", false
	configPath = path
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "get register",
			args:        []string{"get", "RCC.AHB1ENR"},
			wantContain: []string{"RCC.AHB1ENR = 0x00000100"},
		},
		{
			name:        "get family field",
			args:        []string{"get", "RCC.AHB1ENR.DMAEN[1]", "GPIO[A].MODER.MODE[13]"},
			wantContain: []string{"RCC.AHB1ENR.DMA1EN = 0 (0x0)", "GPIOA.MODER.MODE13 = 2 (0x2)"},
		},
		{
			name:        "set family field",
			args:        []string{"set", "RCC.AHB1ENR.DMAEN[2]", "1"},
			wantContain: []string{"RCC.AHB1ENR.DMA2EN = 1 (0x1)"},
		},
		{
			name:        "set register",
			args:        []string{"set", "TIM2.ARR", "0x3E7"},
			wantContain: []string{"TIM2.ARR = 0x000003E7"},
		},
		{
			name:    "field value out of range",
			args:    []string{"set", "GPIOA.MODER.MODE5", "4"},
			wantErr: true,
		},
		{
			name:    "unknown family index",
			args:    []string{"get", "GPIO[H].ODR"},
			wantErr: true,
		},
		{
			name:    "unknown register",
			args:    []string{"get", "RCC.NOPE"},
			wantErr: true,
		},
		{
			name: "resolve",
			args: []string{"resolve", "GPIO[C].BSRR.BR[3]"},
			wantContain: []string{
				"GPIOC.BSRR.BR3",
				"address  0x48000818",
				"access   wo",
				"mask     0x00080000 (shift 19, width 1)",
			},
		},
		{
			name: "dump",
			args: []string{"dump", "GPIOA"},
			wantContain: []string{
				"0x48000000  GPIOA.MODER",
				"0xABFFFFFF",
				"(write-only)",
			},
		},
		{
			name:    "dump register",
			args:    []string{"dump", "GPIOA.MODER"},
			wantErr: true,
		},
		{
			name:        "raw read",
			args:        []string{"read", "0x40021048", "2"},
			wantContain: []string{"0x40021048: 0x00000100", "0x4002104C: 0x00000000"},
		},
		{
			name:    "read past end of address space",
			args:    []string{"read", "0xFFFFFFF0", "5"},
			wantErr: true,
		},
		{
			name:    "huge read count",
			args:    []string{"read", "0x40021048", "0xFFFFFFFF"},
			wantErr: true,
		},
		{
			name:        "read last word",
			args:        []string{"read", "0xFFFFFFFC"},
			wantContain: []string{"0xFFFFFFFC: 0x00000000"},
		},
		{
			name:    "unaligned read",
			args:    []string{"read", "0x40021049"},
			wantErr: true,
		},
		{
			name:        "json",
			args:        []string{"--json", "get", "RCC.AHB1ENR"},
			wantContain: []string{`"path": "RCC.AHB1ENR"`, `"value": 256`, `"name": "FLASHEN"`},
		},
		{
			name:        "idcode",
			args:        []string{"idcode"},
			wantContain: []string{"0x20016469", "STM32G471/473/474/483/484", "Category 3"},
		},
		{
			name:        "idcode unknown part",
			args:        []string{"--sim-idcode", "0x10006999", "idcode"},
			wantContain: []string{"0x10006999", "unknown"},
		},
		{
			name:        "config show",
			args:        []string{"config", "show"},
			wantContain: []string{"bus: sim", "clock_hz: 1000000"},
		},
		{
			name:    "bad bus",
			args:    []string{"--bus", "jtag", "get", "RCC.CR"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestSnapshotE2E(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.cbor")

	out, err := execute(t, "snapshot", "save", path, "--label", "boot")
	if err != nil {
		t.Fatalf("snapshot save: %v", err)
	}
	if !strings.Contains(out, "saved ") {
		t.Errorf("save output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}

	out, err = execute(t, "snapshot", "show", path)
	if err != nil {
		t.Fatalf("snapshot show: %v", err)
	}
	for _, want := range []string{`"boot"`, "STM32G4", "0x48000000  GPIOA.MODER", "0xABFFFFFF"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q\nGot:\n%s", want, out)
		}
	}

	// A fresh simulator is in reset state, so the live diff is empty.
	out, err = execute(t, "snapshot", "show", path, "--live")
	if err != nil {
		t.Fatalf("snapshot show --live: %v", err)
	}
	if !strings.Contains(out, "no differences") {
		t.Errorf("live diff = %q, want no differences", out)
	}

	out, err = execute(t, "snapshot", "restore", path)
	if err != nil {
		t.Fatalf("snapshot restore: %v", err)
	}
	if !strings.Contains(out, "restored ") {
		t.Errorf("restore output = %q", out)
	}

	if _, err := execute(t, "snapshot", "show", path, "--live", "--diff", path); err == nil {
		t.Error("show with --live and --diff: expected error")
	}
}

func TestConfigSaveE2E(t *testing.T) {
	if _, err := execute(t, "--clock", "4000000", "config", "save"); err != nil {
		t.Fatalf("config save: %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if !strings.Contains(string(data), "clock_hz: 4000000") {
		t.Errorf("settings file = %q, want clock_hz: 4000000", data)
	}
}

func TestFlagsOverrideInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bus: dap\nprobe:\n  clock_hz: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeWith(t, path, "get", "RCC.CR"); err == nil {
		t.Error("settings with zero probe clock accepted")
	}
	out, err := executeWith(t, path, "--bus", "sim", "get", "RCC.AHB1ENR")
	if err != nil {
		t.Fatalf("--bus sim over dap settings: %v", err)
	}
	if !strings.Contains(out, "RCC.AHB1ENR = 0x00000100") {
		t.Errorf("output = %q", out)
	}

	if err := os.WriteFile(path, []byte("bus: jtag\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeWith(t, path, "--bus", "sim", "get", "RCC.AHB1ENR"); err != nil {
		t.Errorf("--bus sim over unknown bus setting: %v", err)
	}
}
