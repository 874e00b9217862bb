// Command ntc-devdns is a development DNS resolver for converted routing
// configs: it reads a converted Traefik dynamic configuration file, extracts
// every literal Host()/HostSNI() hostname referenced by a router, and
// answers A queries for those hostnames with a single target IP so a
// developer can point /etc/hosts-free local DNS at a proxy under test.
// Adapted from the teacher's cmd/dns-server, which resolved a fixed custom
// TLD instead of a dynamically discovered hostname set.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/miekg/dns"

	"github.com/bolabaden/nginx-traefik-converter/pkg/config"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ingest"
	"github.com/bolabaden/nginx-traefik-converter/pkg/logger"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleparser"
	"github.com/bolabaden/nginx-traefik-converter/pkg/utils"
)

// hostSet tracks the hostnames resolved out of the watched config file,
// reloaded whenever the file is re-read on SIGHUP.
type hostSet struct {
	mu    sync.RWMutex
	hosts map[string]struct{}
}

func newHostSet() *hostSet {
	return &hostSet{hosts: make(map[string]struct{})}
}

func (h *hostSet) replace(hosts []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hosts = make(map[string]struct{}, len(hosts))
	for _, name := range hosts {
		h.hosts[strings.ToLower(name)] = struct{}{}
	}
}

func (h *hostSet) has(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.hosts[strings.ToLower(strings.TrimSuffix(name, "."))]
	return ok
}

type devDNSServer struct {
	hosts    *hostSet
	targetIP string
	logger   *logger.Logger
}

func (s *devDNSServer) createRefusedResponse(r *dns.Msg) *dns.Msg {
	msg := dns.Msg{}
	msg.SetReply(r)
	msg.Rcode = dns.RcodeRefused
	return &msg
}

func (s *devDNSServer) handleDNSRequest(w dns.ResponseWriter, r *dns.Msg) {
	for _, question := range r.Question {
		name := strings.ToLower(question.Name)
		if !s.hosts.has(name) {
			s.logger.Debug("refusing query for unknown host", "name", name)
			w.WriteMsg(s.createRefusedResponse(r))
			return
		}
	}

	msg := dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	for _, question := range r.Question {
		name := strings.ToLower(question.Name)
		switch question.Qtype {
		case dns.TypeA:
			rr, err := dns.NewRR(fmt.Sprintf("%s A %s", question.Name, s.targetIP))
			if err == nil {
				msg.Answer = append(msg.Answer, rr)
				s.logger.Info("resolved", "host", name, "target_ip", s.targetIP)
			} else {
				s.logger.Error("failed to build A record", "host", name, "error", err)
			}
		case dns.TypeAAAA:
			s.logger.Debug("ipv6 query, returning empty response", "host", name)
		default:
			s.logger.Debug("unsupported query type", "type", dns.TypeToString[question.Qtype], "host", name)
		}
	}

	w.WriteMsg(&msg)
}

func extractHosts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := (ingest.TraefikDynamicIngestor{}).Ingest(data, ingest.Options{SourceFile: path})
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.Rule == nil {
			continue
		}
		hosts = append(hosts, ruleparser.ExtractHosts(r.Rule)...)
	}
	return hosts, nil
}

func main() {
	var (
		port       = flag.String("port", "", "DNS server port (overrides config)")
		targetIP   = flag.String("ip", "", "IP address to resolve matched hosts to (overrides config)")
		configPath = flag.String("config", "", "path to a converted Traefik dynamic configuration file (required)")
	)
	flag.Parse()

	cfg := config.LoadDevDNS()
	envLevel := config.GetEnvOrDefault("NTC_LOG_LEVEL", "info")
	if err := utils.ValidateLogLevel(envLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, falling back to info\n", err)
	}
	log := logger.NewWithEnv("ntc-devdns")

	if *port != "" {
		cfg.Port = *port
	}
	if *targetIP != "" {
		cfg.TargetIP = *targetIP
	}
	if *configPath == "" {
		log.Error("--config is required")
		os.Exit(1)
	}
	if net.ParseIP(cfg.TargetIP) == nil {
		log.Error("invalid target IP address", "ip", cfg.TargetIP)
		os.Exit(1)
	}

	hosts := newHostSet()
	reload := func() {
		found, err := extractHosts(*configPath)
		if err != nil {
			log.Error("failed to reload config", "path", *configPath, "error", err)
			return
		}
		hosts.replace(found)
		log.Info("reloaded hosts", "count", len(found), "path", *configPath)
	}
	reload()

	server := &devDNSServer{hosts: hosts, targetIP: cfg.TargetIP, logger: log}

	dns.HandleFunc(".", server.handleDNSRequest)

	udpServer := &dns.Server{Addr: ":" + cfg.Port, Net: "udp", Handler: dns.DefaultServeMux}
	tcpServer := &dns.Server{Addr: ":" + cfg.Port, Net: "tcp", Handler: dns.DefaultServeMux}

	errChan := make(chan error, 2)
	go func() {
		if err := udpServer.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("UDP server failed: %w", err)
		}
	}()
	go func() {
		if err := tcpServer.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("TCP server failed: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		log.Error("server startup failed", "error", err)
		os.Exit(1)
	case <-time.After(100 * time.Millisecond):
	}

	log.Info("devdns server started", "port", cfg.Port, "target_ip", cfg.TargetIP)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-hup:
			log.Info("received SIGHUP, reloading config")
			reload()
		case <-stop:
			log.Info("shutting down devdns server")
			udpServer.Shutdown()
			tcpServer.Shutdown()
			return
		}
	}
}
