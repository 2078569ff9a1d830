package browser

// JS snippets evaluated against element handles. Synthetic event sequences
// live here rather than using Playwright's own input pipeline: the target
// portals gate on the exact pointer/mouse event shape and on framework-aware
// value assignment, so the sequences are dispatched verbatim in page context.

const scriptVisible = `el => {
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

const scriptDisabled = `el => Boolean(el.disabled)`

const scriptValue = `el => {
	if (typeof el.value === "string") return el.value;
	return el.getAttribute("value") || "";
}`

const scriptScrollIntoView = `el => {
	el.scrollIntoView({ block: "center", inline: "center", behavior: "instant" });
}`

// Full pointer/mouse sequence at the element's visual center. Coordinates
// stay at least 2px inside the box so hit-testing lands on the element.
const scriptClickSequence = `el => {
	const rect = el.getBoundingClientRect();
	const x = rect.left + Math.max(2, Math.min(rect.width - 2, rect.width / 2));
	const y = rect.top + Math.max(2, Math.min(rect.height - 2, rect.height / 2));
	const base = { bubbles: true, cancelable: true, composed: true, clientX: x, clientY: y, button: 0 };
	const pointer = { ...base, pointerType: "mouse", isPrimary: true };

	el.dispatchEvent(new PointerEvent("pointerdown", { ...pointer, buttons: 1 }));
	el.dispatchEvent(new MouseEvent("mousedown", { ...base, buttons: 1 }));
	el.dispatchEvent(new PointerEvent("pointerup", { ...pointer, buttons: 0 }));
	el.dispatchEvent(new MouseEvent("mouseup", { ...base, buttons: 0 }));
	el.dispatchEvent(new MouseEvent("click", { ...base, buttons: 0 }));
}`

const scriptNativeActivate = `el => {
	if (typeof el.click === "function") el.click();
}`

// Paste-like insertion: clear-range, synthetic paste, insert-range, input
// event tagged as paste-origin. Some login forms only accept paste-sourced
// input. Returns whether the field reflects the intended text.
const scriptPasteInsert = `(el, text) => {
	try {
		if (el.setRangeText) el.setRangeText("", 0, String(el.value || "").length, "end");
		el.dispatchEvent(new ClipboardEvent("paste", {
			bubbles: true,
			cancelable: true,
			clipboardData: new DataTransfer()
		}));
		if (el.setRangeText) el.setRangeText(text, 0, String(el.value || "").length, "end");
		el.dispatchEvent(new InputEvent("input", {
			bubbles: true,
			inputType: "insertFromPaste",
			data: text
		}));
		return el.value === text;
	} catch (_error) {
		return false;
	}
}`

// Assignment through the inherited property setter so framework-managed
// inputs (which shadow .value per-instance) observe the change.
const scriptSetNativeValue = `(el, text) => {
	const prototype = Object.getPrototypeOf(el);
	const descriptor = Object.getOwnPropertyDescriptor(prototype, "value");
	if (descriptor && descriptor.set) {
		descriptor.set.call(el, text);
	} else {
		el.value = text;
	}
	el.dispatchEvent(new Event("input", { bubbles: true }));
}`

const scriptDispatchChange = `el => {
	el.dispatchEvent(new Event("change", { bubbles: true }));
}`

const scriptSetChecked = `(el, checked) => {
	try {
		el.checked = checked;
	} catch (_error) {
		// Read-only on non-checkable nodes.
	}
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
}`

const scriptSelectOptionByLabel = `(el, folded) => {
	if (String(el.tagName || "").toLowerCase() !== "select") return false;
	const fold = (value) => String(value || "")
		.normalize("NFD")
		.replace(/[̀-ͯ]/g, "")
		.toLowerCase()
		.replace(/\s+/g, " ")
		.trim();
	const option = Array.from(el.options || []).find((opt) => fold(opt.textContent).includes(folded));
	if (!option) return false;
	el.value = option.value;
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
}`

const scriptScrollable = `el => {
	const style = window.getComputedStyle(el);
	if (!style) return false;
	const overflowY = style.overflowY;
	return (overflowY === "auto" || overflowY === "scroll") && el.scrollHeight > el.clientHeight;
}`

const scriptScrollToBottom = `el => {
	el.scrollTop = el.scrollHeight;
}`

const scriptResourceURLs = `() => performance.getEntriesByType("resource").map((entry) => entry.name)`

const scriptBodyText = `() => (document.body && document.body.textContent) || ""`

// Installed as an init script: batches document mutations into calls of the
// exposed binding so the Go side can re-arm workflows on DOM churn without
// polling.
const scriptMutationObserver = `() => {
	if (window.__billfetchMutationWatcher) return;
	window.__billfetchMutationWatcher = true;
	let scheduled = false;
	const observer = new MutationObserver(() => {
		if (scheduled) return;
		scheduled = true;
		setTimeout(() => {
			scheduled = false;
			if (window.__billfetchOnMutation) window.__billfetchOnMutation(location.pathname);
		}, 200);
	});
	observer.observe(document.documentElement, { childList: true, subtree: true });
}`
