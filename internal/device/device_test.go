package device

import "testing"

func TestResolveExplicitDeviceWins(t *testing.T) {
	useGPU := false
	d := Resolve("gpu:1", &useGPU, Probe{GPUAvailable: false})
	if d.Kind != GPU || d.Index != 1 {
		t.Fatalf("expected gpu:1, got %+v", d)
	}
}

func TestResolveUseGPUFlag(t *testing.T) {
	useGPU := true
	d := Resolve("", &useGPU, Probe{GPUAvailable: false})
	if d.Kind != GPU {
		t.Fatalf("expected gpu, got %+v", d)
	}
}

func TestResolveAutoDetect(t *testing.T) {
	d := Resolve("", nil, Probe{GPUAvailable: true})
	if d.Kind != GPU {
		t.Fatalf("expected auto-detected gpu, got %+v", d)
	}
	d = Resolve("", nil, Probe{GPUAvailable: false})
	if d.Kind != CPU {
		t.Fatalf("expected auto-detected cpu, got %+v", d)
	}
}

func TestDefaultMaxInflight(t *testing.T) {
	gpu := Device{Kind: GPU}
	if gpu.DefaultMaxInflight(8) != 1 {
		t.Fatal("gpu should always default to 1 inflight")
	}
	cpu := Device{Kind: CPU}
	if cpu.DefaultMaxInflight(8) != 8 {
		t.Fatal("cpu should use maxWorkersBackend")
	}
	if cpu.DefaultMaxInflight(0) != 1 {
		t.Fatal("cpu should floor to 1")
	}
}
