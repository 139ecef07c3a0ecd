// Package metadata defines the canonical type-metadata tree that every other
// typegraph package is built from.
//
// # Overview
//
// A TypeMetadata node describes one structural type occurrence: a primitive
// leaf, an object with ordered properties, an enum with its members, a union of
// named object types, or a reference to a named type declared elsewhere. The
// Application type groups those trees into models, inputs, queries, mutations,
// subscriptions and actions.
//
// The tree is pure data. It is produced by the compiler package (or loaded
// from a serialized cache) and consumed read-only by the schema builder and the
// dispatch engine.
//
// # Nullability
//
// Nodes are required by default. Nullable and CanBeUndefined are independent:
//
//	required:           {Nullable: false, CanBeUndefined: false}
//	nullable:           {Nullable: true}
//	optional:           {CanBeUndefined: true}
//	nullable+optional:  {Nullable: true, CanBeUndefined: true}
//
// Array wraps the non-array form of the same node, so an array of nullable
// elements cannot be expressed.
//
// # References
//
// A node of KindReference carries only a TypeName. It must resolve to exactly
// one entry of Application.Models or Application.Inputs, which Validate
// checks:
//
//	app, err := metadata.Load("app.yaml")
//	if err != nil {
//		return err
//	}
//	if err := app.Validate(); err != nil {
//		return err
//	}
//
// # Serialization
//
// Both JSON and YAML encodings are supported. Kinds are written as their
// lowercase names and empty fields are omitted:
//
//	{
//	  "name": "blog",
//	  "models": [
//	    {
//	      "kind": "object",
//	      "typeName": "Post",
//	      "propertyPath": "Post",
//	      "properties": [
//	        {"kind": "number", "propertyName": "id", "propertyPath": "Post.id"},
//	        {"kind": "reference", "typeName": "Category", "propertyName": "categories",
//	         "propertyPath": "Post.categories", "array": true}
//	      ]
//	    }
//	  ]
//	}
package metadata
