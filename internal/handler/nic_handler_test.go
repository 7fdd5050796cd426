// internal/handler/nic_handler_test.go
package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"efi-access/internal/config"
	"efi-access/internal/firmware/sim"
	"efi-access/internal/service"
	"efi-access/internal/utils"
	"efi-access/pkg/efi"
	"efi-access/pkg/efi/helpers"
	"efi-access/pkg/efi/snp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	fw     *sim.Firmware
	nic    *sim.NIC
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := sim.DefaultNICConfig()
	cfg.Loopback = true

	fw := sim.New(nil)
	nic := sim.NewNIC(fw, cfg)
	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	hc := helpers.New(bt, helpers.Options{Logger: true, Allocator: true})
	if err := hc.Init(); err != nil {
		t.Fatal(err)
	}
	net, err := snp.Open(bt)
	if err != nil {
		t.Fatal(err)
	}

	logger := zap.NewNop()
	svc := service.NewNICService(fw, nic, bt, net, hc, nil, logger)

	router := gin.New()
	NewHealthHandler(svc, &config.Config{App: config.AppConfig{Name: "snpsim", Version: "test"}}, logger).RegisterRoutes(router)
	api := router.Group("/api/v1")
	NewNICHandler(svc, logger).RegisterRoutes(api)
	NewFirmwareHandler(svc, logger).RegisterRoutes(api)

	return &testServer{router: router, fw: fw, nic: nic}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, utils.APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp utils.APIResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: %v: %s", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

func (s *testServer) up(t *testing.T) {
	t.Helper()

	for _, path := range []string{"/api/v1/nic/start", "/api/v1/nic/initialize"} {
		if code, resp := s.do(t, http.MethodPost, path, nil); code != http.StatusOK {
			t.Fatalf("%s: %d %+v", path, code, resp.Error)
		}
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/nic/initialize", nil)
	if code != http.StatusBadGateway || resp.Error.EFIStatus != "EFI_NOT_STARTED" {
		t.Fatalf("initialize before start: %d %+v", code, resp.Error)
	}

	s.up(t)

	code, resp = s.do(t, http.MethodGet, "/api/v1/nic/mode", nil)
	if code != http.StatusOK {
		t.Fatalf("mode: %d", code)
	}
	mode := resp.Data.(map[string]interface{})
	if mode["state"] != "initialized" {
		t.Fatalf("state = %v", mode["state"])
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/nic/reset", map[string]bool{"extended_verification": true})
	if code != http.StatusOK {
		t.Fatalf("reset: %d", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/nic/shutdown", nil)
	if code != http.StatusOK {
		t.Fatalf("shutdown: %d", code)
	}
}

func TestArgumentErrorsAreBadRequests(t *testing.T) {
	s := newTestServer(t)
	s.up(t)

	zero := uint(0)
	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"zero extra buffer", http.MethodPost, "/api/v1/nic/initialize", map[string]*uint{"extra_rx_buffer_size": &zero}},
		{"unknown filter", http.MethodPut, "/api/v1/nic/filters", map[string][]string{"enable": {"everything"}}},
		{"missing payload", http.MethodPost, "/api/v1/nic/transmit", map[string]interface{}{"header_size": 0}},
		{"missing length", http.MethodGet, "/api/v1/nic/nvram?offset=0", nil},
		{"nvram read past device size", http.MethodGet, "/api/v1/nic/nvram?offset=0&length=68719476736", nil},
		{"oversized receive buffer", http.MethodPost, "/api/v1/nic/receive", map[string]int{"buffer_size": 1 << 36}},
		{"negative receive buffer", http.MethodPost, "/api/v1/nic/receive", map[string]int{"buffer_size": -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := s.fw.Calls()
			code, resp := s.do(t, tc.method, tc.path, tc.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status %d, %+v", code, resp.Error)
			}
			if s.fw.Calls() != calls {
				t.Fatal("request reached firmware")
			}
		})
	}
}

func TestTransmitReceiveEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.up(t)

	code, _ := s.do(t, http.MethodPut, "/api/v1/nic/filters", map[string][]string{"enable": {"unicast", "broadcast"}})
	if code != http.StatusOK {
		t.Fatalf("filters: %d", code)
	}

	code, resp := s.do(t, http.MethodPost, "/api/v1/nic/receive", nil)
	if code != http.StatusBadGateway || resp.Error.EFIStatus != "EFI_NOT_READY" {
		t.Fatalf("empty receive: %d %+v", code, resp.Error)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/nic/transmit", map[string]interface{}{"header_size": 14, "payload": make([]byte, 46)})
	if code != http.StatusBadGateway || resp.Error.EFIStatus != "EFI_INVALID_PARAMETER" {
		t.Fatalf("header without destination: %d %+v", code, resp.Error)
	}

	proto := 0x0800
	code, resp = s.do(t, http.MethodPost, "/api/v1/nic/transmit", map[string]interface{}{
		"header_size": 14,
		"destination": "ff:ff:ff:ff:ff:ff",
		"protocol":    proto,
		"payload":     make([]byte, 46),
	})
	if code != http.StatusAccepted {
		t.Fatalf("transmit: %d %+v", code, resp.Error)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/nic/receive", map[string]int{"buffer_size": 128})
	if code != http.StatusOK {
		t.Fatalf("receive: %d %+v", code, resp.Error)
	}
	frame := resp.Data.(map[string]interface{})
	if frame["length"].(float64) != 60 || frame["protocol"].(float64) != float64(proto) {
		t.Fatalf("frame = %v", frame)
	}

	code, resp = s.do(t, http.MethodGet, "/api/v1/nic/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d", code)
	}
	stats := resp.Data.(map[string]interface{})
	if stats["tx_broadcast_frames"].(float64) != 1 || stats["rx_crc_error_frames"] != nil {
		t.Fatalf("stats = %v", stats)
	}
}

func TestInjectRequiresRunningInterface(t *testing.T) {
	s := newTestServer(t)

	frame := sim.BuildFrame(snp.MacAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, snp.MacAddress{2}, 0x0806, make([]byte, 28))
	code, resp := s.do(t, http.MethodPost, "/api/v1/nic/inject", map[string][]byte{"frame": frame})
	if code != http.StatusConflict || resp.Error.Code != "NOT_RUNNING" {
		t.Fatalf("inject while stopped: %d %+v", code, resp.Error)
	}
}

func TestFirmwareExit(t *testing.T) {
	s := newTestServer(t)
	s.up(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/firmware/exit", nil)
	if code != http.StatusOK {
		t.Fatalf("exit: %d %+v", code, resp.Error)
	}

	code, resp = s.do(t, http.MethodGet, "/api/v1/nic/mode", nil)
	if code != http.StatusConflict || resp.Error.Code != "BOOT_SERVICES_EXITED" {
		t.Fatalf("mode after exit: %d %+v", code, resp.Error)
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/firmware/exit", nil)
	if code != http.StatusConflict {
		t.Fatalf("second exit: %d", code)
	}

	code, resp = s.do(t, http.MethodGet, "/api/v1/firmware", nil)
	if code != http.StatusOK {
		t.Fatalf("firmware: %d", code)
	}
	info := resp.Data.(map[string]interface{})
	if info["phase"] != "post-exit" {
		t.Fatalf("phase = %v", info["phase"])
	}

	if len(s.fw.Violations()) != 0 {
		t.Fatalf("violations: %v", s.fw.Violations())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	var health HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Checks["nic"].Status != "healthy" {
		t.Fatalf("health = %+v", health)
	}
}
