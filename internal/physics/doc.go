// Package physics provides the material point state and the material laws
// evaluated on it.
//
// A [Particle] carries position, velocity, the deformation gradient F, the
// integrated volume ratio J and the APIC affine matrix B. Its elastic
// constants come from a shared [Material].
//
// Stress is computed by a [ConstitutiveModel]:
//
//   - [NeoHookean]: compressible hyperelastic solid
//   - [QuadraticVolumePenalty]: volume-only penalty, weakly compressible fluid
//   - [NeoHookeanFluid]: volumetric Neo-Hookean term only
//   - [MixedPressureFluid]: pressure fluid, mixed stress form only
//
// Permanent deformation is handled by a [Plasticity] model applied after
// every F update:
//
//   - [VonMises]: deviatoric yield with linear hardening
//   - [Snow]: stretch clamping with plastic volume tracking
//
// Both plasticity models implement [Configurable] so scene files can set
// their parameters by name.
//
// # Example
//
//	m, _ := physics.NewMaterial(50, 0.3, 10, 1)
//	p := physics.NewParticle(pos, vel, m)
//	P, err := physics.NeoHookean{}.StressTensor(&p)
package physics
