// Package compose turns a step group and its traits into a presentable
// package.
//
// Traits are looked up by type in a Registry of factories. Each factory
// decodes the authored config with mapstructure. Exactly one presenting trait
// (modal, tooltip, embedded) must apply; decorating traits (skippable,
// backdrop, carousel) adjust the resulting Presentation. The platform layer
// supplies a ContainerFactory that turns the Presentation into a container.
package compose
