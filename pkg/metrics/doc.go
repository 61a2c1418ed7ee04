/*
Package metrics provides Prometheus metrics collection and exposition for
the credential and namespace subsystems.

Metrics are registered against the default Prometheus registry at package
init and exposed via Handler() for scraping.

# Metric Categories

  - Credentials: issued, verified, and rejected counts, labeled by kind
    (job, bcast, net) and, for rejections, the operational error code.
  - Bcast cache: replay rejections and live cache size.
  - Namespace engine: per-job creation latency and operation outcomes.

# Alerting Guidance

High Rejection Rate:
  - Alert: rate(bastion_credentials_rejected_total[5m]) > 0
  - Description: credentials are failing verification
  - Action: check clock skew between scheduler and node, signer provider health

High Bcast Replay Rejection Rate:
  - Alert: rate(bastion_bcast_replay_rejections_total[5m]) > 0
  - Description: bcast blocks are being rejected as replays
  - Action: check for credential reuse across unrelated transfers

Slow Namespace Creation:
  - Alert: histogram_quantile(0.95, bastion_namespace_create_duration_seconds_bucket) > 1
  - Description: p95 namespace creation latency exceeds 1 second
  - Action: check basepath filesystem and init script latency

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
