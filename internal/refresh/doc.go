// Package refresh schedules periodic aggregation cycles and fans the
// results out to sinks (snapshot store, history recorder, MQTT
// publisher, WebSocket hub). Cycles can also be triggered manually,
// for startup warm-up or an explicit API request.
package refresh
