package math

// SIMD-optimized operations
// TODO: Implement platform-specific SIMD optimizations using assembly or compiler intrinsics
// This file is a placeholder for future SIMD optimizations for:
// - Vectorized distance calculations (L2, dot product)
// - Batch operations
// - Platform detection (AVX2, AVX-512, ARM NEON)
