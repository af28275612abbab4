package testutil_test

// Note: Mocks built on testify/mock follow a standard pattern and hold no
// logic of their own beyond recording calls and returning configured values,
// so they get no dedicated unit tests here.
//
// Their correctness is exercised by the tests of the components that consume
// them (e.g., the engine tests inject MockInvoker and assert on the
// interactions the engine performs).
