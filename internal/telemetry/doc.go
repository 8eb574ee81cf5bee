// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 poller 的 longrun.* span 与 HTTP 追踪中间件提供 TracerProvider 和 MeterProvider，
// resource 上附带服务名、版本与当前视频后端。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
