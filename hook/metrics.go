/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package hook

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors the dispatcher updates as it
// processes webhook deliveries.
type Metrics struct {
	WebhookCounter  *prometheus.CounterVec
	DispatchErrors  *prometheus.CounterVec
	ViolationsFound *prometheus.CounterVec
}

// NewMetrics builds and registers the dispatcher's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		WebhookCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitbot_webhook_counter",
			Help: "Number of webhook events received by event type.",
		}, []string{"event_type"}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitbot_dispatch_errors",
			Help: "Number of errors encountered while dispatching a webhook event, by event type.",
		}, []string{"event_type"}),
		ViolationsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitbot_violations_found",
			Help: "Number of policy violations found, by rule_id.",
		}, []string{"rule_id"}),
	}
	prometheus.MustRegister(m.WebhookCounter, m.DispatchErrors, m.ViolationsFound)
	return m
}
