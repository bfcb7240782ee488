/*
Package health probes a running deployment.

printenv uses an HTTPChecker pointed at {url}/alive to tell the operator
whether the instance actually answers. Probe polls a Checker until it reports
healthy or fails Config.Retries times in a row:

	checker := health.NewAliveChecker(c.Config.Url, !c.Config.SslManagedLetsEncrypt)
	result := health.Probe(ctx, checker, health.DefaultConfig())
	if !result.Healthy {
		fmt.Printf("warning: %s did not answer: %s\n", c.Config.Url, result.Message)
	}

Any status in 200-399 counts as healthy.
*/
package health
