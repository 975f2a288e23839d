package ecwid

import "fmt"

// =============================================================================
// IN-PAGE SCRIPTS
// =============================================================================
//
// The Ecwid widget exposes a callback-style API on window.Ecwid. Each script
// below wraps exactly one widget call in a Promise that always resolves to an
// envelope:
//
//	{ ok: true,  value: <callback result> }
//	{ ok: false, error: "<reason>" }
//
// Resolving instead of rejecting keeps the DevTools exception path for real
// faults (page crashed, context destroyed) and lets the Go side decode a
// single shape. Sequencing between calls (refetch after remove, empty-cart
// check before checkout) lives in Go, not in the page.
// =============================================================================

// widgetReadyJS is polled until the cart API exists.
const widgetReadyJS = `() => !!(window.Ecwid && window.Ecwid.Cart)`

// widgetCall builds a promise-returning function with parameter param whose
// body may call done(value) once.
func widgetCall(param, body string) string {
	return fmt.Sprintf(`(%s) => new Promise((resolve) => {
	if (!window.Ecwid || !window.Ecwid.Cart) {
		resolve({ ok: false, error: "Ecwid API not loaded" });
		return;
	}
	const done = (value) => resolve({ ok: true, value: value === undefined ? null : value });
	try {
		%s
	} catch (e) {
		resolve({ ok: false, error: String(e && e.message ? e.message : e) });
	}
})`, param, body)
}

var (
	getCartJS = widgetCall("", `Ecwid.Cart.get((cart) => done(cart));`)

	addProductJS = widgetCall("req", `Ecwid.Cart.addProduct({
			id: req.id,
			quantity: req.quantity,
			options: req.options || {},
			callback: (success, product, cart) => done({ success: success, addedProduct: product, updatedCart: cart }),
		});`)

	removeProductJS = widgetCall("index", `Ecwid.Cart.removeProduct(index, () => done(true));`)

	clearCartJS = widgetCall("", `Ecwid.Cart.clear(() => done(true));`)

	openCheckoutJS = widgetCall("", `Ecwid.Checkout.open(); done(true);`)
)
