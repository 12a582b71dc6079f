// Package config loads the pvebulk configuration file.
//
// The file is YAML, decoded over Default() so every key is optional, and
// validated with struct tags. A minimal file for running from outside the
// cluster:
//
//	cluster:
//	  seed: 10.0.0.1
//	ssh:
//	  private_key: /root/.ssh/id_ed25519
//	metrics:
//	  namespace: pvebulk
//	  textfile_path: /var/lib/prometheus/node-exporter/pvebulk.prom
//
// Resolve picks the file: an explicit --config path, then $PVEBULK_CONFIG,
// then /etc/pvebulk/config.yaml when it exists.
package config
