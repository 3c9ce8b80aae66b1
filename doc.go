// Package stompy is a stomp 1.0/1.1 client library: a byte-level frame
// parser, a frame serializer, and a two-layer connection engine (a raw
// socket Connection and a logical session Connector) for talking to a
// stomp message broker.
//
// Example: connect, publish a JSON message, disconnect.
//
//	events := stompy.ConnectorEvents{
//		OnReady: func() {
//			fmt.Println("connected and ready")
//		},
//		OnMessage: func(f *stompy.Frame) {
//			fmt.Println("received", f.Command, f.GetHeaderValue("destination"))
//		},
//		OnDisconnect: func(graceful bool) {
//			fmt.Println("disconnected, graceful =", graceful)
//		},
//	}
//	connector := stompy.NewConnector(stompy.ConnectorOpts{
//		Hostname: "localhost",
//		Port:     stompy.DefaultBrokerPort,
//		Broker:   "localhost",
//		Username: "user",
//		Password: "pass",
//		Timeout:  20 * time.Second,
//	}, events, logger)
//	if err := connector.Connect(); err != nil {
//		log.Fatal(err)
//	}
//	send := connector.CreateSend("/test/test")
//	send.Body = stompy.NewStringBody(`{"test":"test"}`)
//	send.AppendContentType("application/json", "utf8")
//	send.AppendContentLength()
//	connector.Send(send)
//	connector.Disconnect(true)
package stompy
