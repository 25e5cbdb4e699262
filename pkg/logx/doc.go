// Package logx is a thin zerolog wrapper with hot-swappable sinks.
//
// It exposes a small structured Logger that stays valid across
// Service.Apply() calls, so components can hold a Logger while the
// daemon reconfigures level and outputs at runtime.
package logx
