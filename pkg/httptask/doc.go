// Package httptask sends HTTP requests as dispatch tasks.
//
// A Transport wraps a github.com/go-resty/resty/v2 client. Because the
// client enforces its own timeout, passing the Transport to dispatch.New
// turns the manager's watchdog off and routes SetTimeout to the client.
//
//	tr := httptask.NewTransport(cfg, httptask.WithLogger(log))
//	m := dispatch.New(dispatch.WithTransport(tr))
//	m.Start()
//
//	req := tr.NewRequest(http.MethodGet, "https://example.com/feed", httptask.WithPriority(dispatch.PriorityHigh))
//	if err := m.SubmitAndWait(ctx, req); err != nil {
//		return err
//	}
//	fmt.Println(req.Response().StatusCode)
//
// Requests with the same method, URL and body are duplicates unless
// AllowDuplicates is set. Response bodies are read in full and reported as
// receiving progress while they stream in.
package httptask
