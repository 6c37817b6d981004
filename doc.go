// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guda provides a CUDA-compatible API for CPU execution.
// It enables running CUDA-style kernels on CPU-only infrastructure.
//
// The runtime provides device memory from an aligned pool, streams that run
// their work in submission order and keep the first error, cooperative block
// launches with warp shuffles and barriers, and events for device timing.
// The warp width is fixed at startup from the CPU's vector extensions.
//
// Package reduction builds a multi-pass array reduction on top of it, and
// package dispatch holds the compile-time constant menus its kernels are
// specialized over.
//
// Example usage:
//
//	ctx := guda.NewContext()
//	defer ctx.Destroy()
//
//	// Allocate device memory
//	d_a, _ := ctx.Malloc(n * 4) // n float32s
//
//	// Copy data to device
//	ctx.Memcpy(d_a, unsafe.Pointer(&h_a[0]), n*4, guda.MemcpyHostToDevice)
//
//	// Launch a cooperative kernel
//	grid := guda.Dim3{X: (n + 255) / 256}
//	block := guda.Dim3{X: 256}
//	ctx.LaunchBlocks(myKernel, grid, block, ctx.DefaultStream())
package guda
