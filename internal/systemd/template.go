// Package systemd carries the agent's service unit template and the
// install-time unit file integrity check. An agent whose own unit file
// has been tampered with cannot be trusted to report drift honestly.
package systemd

// AgentTemplate returns the systemd unit for the driftwatch agent.
// ReadWritePaths is limited to the state and log directories so the
// agent cannot modify the files it monitors.
func AgentTemplate() string {
	return `[Unit]
Description=Driftwatch file integrity monitoring agent
Documentation=https://github.com/ppiankov/driftwatch
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/usr/local/bin/driftwatch agent --config /etc/driftwatch/config.yaml
Restart=on-failure
RestartSec=5
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=read-only
ProtectKernelTunables=true
RestrictNamespaces=true
MemoryDenyWriteExecute=true
ReadWritePaths=/var/lib/driftwatch /var/log/driftwatch
CPUQuota=30%
MemoryMax=512M
TasksMax=50

[Install]
WantedBy=multi-user.target
`
}
